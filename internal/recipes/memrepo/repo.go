package memrepo

import (
	"context"
	"fmt"
	"sync"

	"github.com/fieldmarcel/recipe-cache/internal/recipes"
)

// Repo is an in-memory implementation of recipes.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	recipes map[string]recipes.Recipe
	// recipe IDs in creation order
	order []string

	users      map[string]recipes.User
	idByName   map[string]string
	ratings    map[string]map[string]int // recipe ID -> user ID -> value
	bookmarks  map[string][]string       // user ID -> recipe IDs
	bookmarked map[string]map[string]bool
}

func NewRepo() *Repo {
	return &Repo{
		recipes:    make(map[string]recipes.Recipe),
		users:      make(map[string]recipes.User),
		idByName:   make(map[string]string),
		ratings:    make(map[string]map[string]int),
		bookmarks:  make(map[string][]string),
		bookmarked: make(map[string]map[string]bool),
	}
}

func (r *Repo) CreateRecipe(ctx context.Context, rec recipes.Recipe) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.recipes[rec.ID]; ok {
		return fmt.Errorf("recipe %s: %w", rec.ID, recipes.ErrAlreadyExists)
	}
	r.recipes[rec.ID] = cloneRecipe(rec)
	r.order = append(r.order, rec.ID)
	return nil
}

func (r *Repo) UpdateRecipe(ctx context.Context, rec recipes.Recipe) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.recipes[rec.ID]; !ok {
		return fmt.Errorf("recipe %s: %w", rec.ID, recipes.ErrNotFound)
	}
	r.recipes[rec.ID] = cloneRecipe(rec)
	return nil
}

func (r *Repo) DeleteRecipe(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.recipes[id]; !ok {
		return fmt.Errorf("recipe %s: %w", id, recipes.ErrNotFound)
	}
	delete(r.recipes, id)
	r.order = removeString(r.order, id)
	delete(r.ratings, id)
	for userID := range r.bookmarked[id] {
		r.bookmarks[userID] = removeString(r.bookmarks[userID], id)
	}
	delete(r.bookmarked, id)
	return nil
}

func (r *Repo) GetRecipe(ctx context.Context, id string) (recipes.Recipe, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.recipes[id]
	if !ok {
		return recipes.Recipe{}, fmt.Errorf("recipe %s: %w", id, recipes.ErrNotFound)
	}
	return cloneRecipe(rec), nil
}

func (r *Repo) ListRecipes(ctx context.Context) ([]recipes.Recipe, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]recipes.Recipe, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, cloneRecipe(r.recipes[id]))
	}
	return out, nil
}

func (r *Repo) UpsertRating(ctx context.Context, rt recipes.Rating) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.recipes[rt.RecipeID]; !ok {
		return fmt.Errorf("recipe %s: %w", rt.RecipeID, recipes.ErrNotFound)
	}
	byUser, ok := r.ratings[rt.RecipeID]
	if !ok {
		byUser = make(map[string]int)
		r.ratings[rt.RecipeID] = byUser
	}
	byUser[rt.UserID] = rt.Value
	return nil
}

func (r *Repo) RatingSummary(ctx context.Context, recipeID string) (recipes.RatingSummary, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	byUser := r.ratings[recipeID]
	if len(byUser) == 0 {
		return recipes.RatingSummary{}, nil
	}
	var sum int
	for _, v := range byUser {
		sum += v
	}
	return recipes.RatingSummary{
		AverageRating: float64(sum) / float64(len(byUser)),
		RatingCount:   len(byUser),
	}, nil
}

func (r *Repo) CreateUser(ctx context.Context, u recipes.User) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.ID]; ok {
		return fmt.Errorf("user %s: %w", u.ID, recipes.ErrAlreadyExists)
	}
	if _, ok := r.idByName[u.UserName]; ok {
		return fmt.Errorf("user %s: %w", u.UserName, recipes.ErrUserNameTaken)
	}
	r.users[u.ID] = u
	r.idByName[u.UserName] = u.ID
	return nil
}

func (r *Repo) UpdateUser(ctx context.Context, u recipes.User) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[u.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", u.ID, recipes.ErrNotFound)
	}
	if holder, ok := r.idByName[u.UserName]; ok && holder != u.ID {
		return fmt.Errorf("user %s: %w", u.UserName, recipes.ErrUserNameTaken)
	}
	delete(r.idByName, existing.UserName)
	r.users[u.ID] = u
	r.idByName[u.UserName] = u.ID
	return nil
}

func (r *Repo) GetUser(ctx context.Context, id string) (recipes.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return recipes.User{}, fmt.Errorf("user %s: %w", id, recipes.ErrNotFound)
	}
	return u, nil
}

func (r *Repo) GetUserByName(ctx context.Context, userName string) (recipes.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idByName[userName]
	if !ok {
		return recipes.User{}, fmt.Errorf("user %s: %w", userName, recipes.ErrNotFound)
	}
	return r.users[id], nil
}

func (r *Repo) AddBookmark(ctx context.Context, userID, recipeID string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.recipes[recipeID]; !ok {
		return fmt.Errorf("recipe %s: %w", recipeID, recipes.ErrNotFound)
	}
	if r.bookmarked[recipeID][userID] {
		return fmt.Errorf("bookmark %s: %w", recipeID, recipes.ErrAlreadyExists)
	}
	if r.bookmarked[recipeID] == nil {
		r.bookmarked[recipeID] = make(map[string]bool)
	}
	r.bookmarked[recipeID][userID] = true
	r.bookmarks[userID] = append(r.bookmarks[userID], recipeID)
	return nil
}

func (r *Repo) RemoveBookmark(ctx context.Context, userID, recipeID string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.bookmarked[recipeID][userID] {
		return fmt.Errorf("bookmark %s: %w", recipeID, recipes.ErrNotFound)
	}
	delete(r.bookmarked[recipeID], userID)
	r.bookmarks[userID] = removeString(r.bookmarks[userID], recipeID)
	return nil
}

func (r *Repo) Bookmarks(ctx context.Context, userID string) ([]string, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.bookmarks[userID]...), nil
}

func (r *Repo) Bookmarkers(ctx context.Context, recipeID string) ([]string, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.bookmarked[recipeID]))
	for userID := range r.bookmarked[recipeID] {
		out = append(out, userID)
	}
	return out, nil
}

func cloneRecipe(in recipes.Recipe) recipes.Recipe {
	out := in
	out.Ingredients = append([]string(nil), in.Ingredients...)
	out.Steps = append([]string(nil), in.Steps...)
	if in.Nutrition != nil {
		out.Nutrition = make(map[string]string, len(in.Nutrition))
		for k, v := range in.Nutrition {
			out.Nutrition[k] = v
		}
	}
	return out
}

func removeString(in []string, s string) []string {
	out := in[:0]
	for _, v := range in {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

var _ recipes.Repository = (*Repo)(nil)
