package recipecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fieldmarcel/recipe-cache/cache"
	cachekey "github.com/fieldmarcel/recipe-cache/pkg/cache-key"

	"github.com/rs/zerolog"
)

// Kind names a mutation that makes cached responses stale.
type Kind string

const (
	RecipeCreated   Kind = "recipe-created"
	RecipeUpdated   Kind = "recipe-updated"
	RecipeDeleted   Kind = "recipe-deleted"
	RatingSubmitted Kind = "rating-submitted"
	ProfileUpdated  Kind = "profile-updated"
	BookmarkAdded   Kind = "bookmark-added"
	BookmarkRemoved Kind = "bookmark-removed"
)

// ErrUnknownKind is returned for a mutation without invalidation rules.
var ErrUnknownKind = errors.New("unknown mutation kind")

// RecipeRef carries the recipe fields that cache keys are derived from.
type RecipeRef struct {
	ID       string
	Category string
	Cuisine  string
	// Username of the recipe author.
	Author string
	// Usernames of everyone who bookmarked the recipe.
	Bookmarkers []string
}

// Mutation describes a committed write.
type Mutation struct {
	Kind   Kind
	Recipe RecipeRef
	// Recipe as it was before an update.
	Previous *RecipeRef
	// Acting user for profile and bookmark mutations.
	Username string
	// Username before a profile rename.
	PreviousUsername string
}

// Registry deletes the cache entries made stale by a mutation.
type Registry struct {
	cache   cache.Store
	timeout time.Duration
	log     zerolog.Logger
	metrics *Metrics
}

// NewRegistry creates a registry deleting from config.Store.
// Each target gets config.WriteTimeout.
func NewRegistry(config Config) *Registry {
	config = config.withDefaults()
	return &Registry{
		cache:   config.Store,
		timeout: config.WriteTimeout,
		log:     config.logger("invalidator"),
		metrics: config.Metrics,
	}
}

// Invalidate deletes every target of m. It must only be called after the
// write described by m has been committed.
//
// Deletion is best effort: a failed target is logged and counted and the
// remaining targets are still processed. The returned error joins all
// failures; callers must not fail the mutation because of it.
func (reg *Registry) Invalidate(ctx context.Context, m Mutation) error {
	targets, err := Targets(m)
	if err != nil {
		reg.log.Error().Err(err).Str("kind", string(m.Kind)).Msg("Could not invalidate")
		return err
	}
	// deletes must outlive a cancelled request
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for _, t := range targets {
		if err := reg.delete(ctx, t); err != nil {
			reg.metrics.invalidation(m.Kind, resultError)
			reg.metrics.storeError("delete")
			reg.log.Error().Err(err).Str("kind", string(m.Kind)).Str("target", t.String()).Msg("Could not invalidate cache target")
			errs = append(errs, fmt.Errorf("%s: %w", t, err))
			continue
		}
		reg.metrics.invalidation(m.Kind, resultOK)
		reg.log.Trace().Str("kind", string(m.Kind)).Str("target", t.String()).Msg("Invalidated")
	}
	return errors.Join(errs...)
}

func (reg *Registry) delete(ctx context.Context, t cachekey.Target) error {
	ctx, cancel := context.WithTimeout(ctx, reg.timeout)
	defer cancel()
	if t.Prefix {
		return reg.cache.DeletePrefix(ctx, t.Key)
	}
	return reg.cache.Delete(ctx, t.Key)
}

// Targets returns the cache targets made stale by m.
// It only looks at the payload, never at the store.
func Targets(m Mutation) ([]cachekey.Target, error) {
	var ts targetSet
	switch m.Kind {
	case RecipeCreated:
		ts.listings()
		ts.scoped(m.Recipe)
	case RecipeUpdated:
		ts.detail(m.Recipe)
		ts.listings()
		ts.scoped(m.Recipe)
		ts.bookmarkers(m.Recipe)
		if m.Previous != nil {
			ts.scoped(*m.Previous)
		}
	case RecipeDeleted, RatingSubmitted:
		// listings embed the rating aggregate, so a rating touches them all
		ts.detail(m.Recipe)
		ts.listings()
		ts.scoped(m.Recipe)
		ts.bookmarkers(m.Recipe)
	case ProfileUpdated:
		ts.user(m.Username)
		if m.PreviousUsername != m.Username {
			ts.user(m.PreviousUsername)
		}
	case BookmarkAdded, BookmarkRemoved:
		ts.family(m.Username, cachekey.Bookmarks)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}
	return ts.targets, nil
}

// targetSet collects targets in order, without duplicates.
type targetSet struct {
	targets []cachekey.Target
	seen    map[cachekey.Target]bool
}

func (ts *targetSet) add(targets ...cachekey.Target) {
	if ts.seen == nil {
		ts.seen = map[cachekey.Target]bool{}
	}
	for _, t := range targets {
		if ts.seen[t] {
			continue
		}
		ts.seen[t] = true
		ts.targets = append(ts.targets, t)
	}
}

// family adds the key family of template(param), skipping empty params.
func (ts *targetSet) family(param string, template func(string) string) {
	if param == "" {
		return
	}
	ts.add(cachekey.Family(template(param))...)
}

func (ts *targetSet) listings() {
	for _, path := range []string{
		cachekey.AllRecipes,
		cachekey.Curated,
		cachekey.Explore,
		cachekey.Discovery,
		cachekey.Search,
	} {
		ts.add(cachekey.Family(path)...)
	}
}

func (ts *targetSet) detail(r RecipeRef) {
	ts.family(r.ID, cachekey.RecipeDetail)
}

// scoped adds the listings filtered by the recipe's attributes and its author's profile.
func (ts *targetSet) scoped(r RecipeRef) {
	ts.family(r.Category, cachekey.Category)
	ts.family(r.Cuisine, cachekey.Cuisine)
	ts.family(r.Author, cachekey.Profile)
}

func (ts *targetSet) bookmarkers(r RecipeRef) {
	for _, u := range r.Bookmarkers {
		ts.family(u, cachekey.Bookmarks)
	}
}

func (ts *targetSet) user(username string) {
	ts.family(username, cachekey.Profile)
	ts.family(username, cachekey.Bookmarks)
}
