// Package cachekey holds the key templates shared by cached read routes and
// invalidation rules. Keys are literal canonical request paths; a read route
// and a rule that refer to the same resource must both go through the
// functions in this package.
package cachekey

import (
	"net/http"
	"net/url"
)

const querySeparator = "?"

// Fixed listing paths.
const (
	AllRecipes = "/recipes"
	Curated    = "/recipes/fixed"
	Explore    = "/recipes/explore"
	Discovery  = "/recipes/moreideas"
	Search     = "/recipes/search"
)

// RecipeDetail is the key of a single recipe.
func RecipeDetail(id string) string {
	return "/recipes/" + url.PathEscape(id)
}

// Category is the key of the category-filtered listing.
func Category(category string) string {
	return "/recipes/category/" + url.PathEscape(category)
}

// Cuisine is the key of the cuisine-filtered listing.
func Cuisine(cuisine string) string {
	return "/recipes/cuisine/" + url.PathEscape(cuisine)
}

// Profile is the key of a user's public profile.
func Profile(username string) string {
	return "/users/" + url.PathEscape(username)
}

// Bookmarks is the key of a user's bookmark list.
func Bookmarks(username string) string {
	return Profile(username) + "/bookmarks"
}

// FromRequest returns the canonical key of a request: its path and query, verbatim.
func FromRequest(r *http.Request) string {
	return r.URL.RequestURI()
}

// WithQuery appends the raw query of r to a templated path.
// The query is kept verbatim, so reordered parameters produce distinct keys.
func WithQuery(path string, r *http.Request) string {
	if r.URL.RawQuery == "" {
		return path
	}
	return path + querySeparator + r.URL.RawQuery
}

// Target is something the invalidation rules delete: either one exact key,
// or every key starting with Key when Prefix is set.
type Target struct {
	Key    string
	Prefix bool
}

func (t Target) String() string {
	if t.Prefix {
		return t.Key + "*"
	}
	return t.Key
}

// Exact targets a single key.
func Exact(key string) Target {
	return Target{Key: key}
}

// Family targets a path together with all of its query-string variants.
func Family(path string) []Target {
	return []Target{
		Exact(path),
		{Key: path + querySeparator, Prefix: true},
	}
}

// Matches reports whether key would be removed by deleting t.
func (t Target) Matches(key string) bool {
	if !t.Prefix {
		return key == t.Key
	}
	return len(key) >= len(t.Key) && key[:len(t.Key)] == t.Key
}
