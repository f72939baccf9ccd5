package recipes

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	recipecache "github.com/fieldmarcel/recipe-cache"
)

const (
	// DefaultCuratedLimit is the curated listing size without a limit.
	DefaultCuratedLimit = 3
	// MaxCuratedLimit bounds the curated listing size.
	MaxCuratedLimit = 50
	// Size of the explore and discovery listings.
	highlightSize = 6
)

// Invalidator removes cached responses made stale by a committed write.
type Invalidator interface {
	Invalidate(ctx context.Context, m recipecache.Mutation) error
}

// Clock provides time to the service.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Service implements the recipe, rating, profile and bookmark operations.
// Every write is persisted first and then reported to the invalidator.
type Service struct {
	repo        Repository
	invalidator Invalidator
	clk         Clock

	newID func() string
}

func NewService(repo Repository, invalidator Invalidator) *Service {
	return &Service{
		repo:        repo,
		invalidator: invalidator,
		clk:         systemClock{},
		newID:       uuid.NewString,
	}
}

// WithClock replaces the service clock.
func (s *Service) WithClock(clk Clock) *Service {
	s.clk = clk
	return s
}

// invalidate never changes the outcome of the write it follows.
func (s *Service) invalidate(ctx context.Context, m recipecache.Mutation) {
	if s.invalidator == nil {
		return
	}
	_ = s.invalidator.Invalidate(ctx, m)
}

// Actor resolves the acting user from its username.
func (s *Service) Actor(ctx context.Context, userName string) (User, error) {
	if strings.TrimSpace(userName) == "" {
		return User{}, unauthenticated()
	}
	u, err := s.repo.GetUserByName(ctx, userName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, unauthenticated()
		}
		return User{}, err
	}
	return u, nil
}

// ---- recipes

func (s *Service) CreateRecipe(ctx context.Context, actor User, in CreateRecipeInput) (RecipeDetail, error) {
	if err := validateCreate(in); err != nil {
		return RecipeDetail{}, err
	}
	now := s.clk.Now()
	rec := Recipe{
		ID:          s.newID(),
		AuthorID:    actor.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Cuisine:     strings.TrimSpace(in.Cuisine),
		MealType:    strings.TrimSpace(in.MealType),
		CookTime:    strings.TrimSpace(in.CookTime),
		ReadyIn:     strings.TrimSpace(in.ReadyIn),
		Servings:    in.Servings,
		Ingredients: trimAll(in.Ingredients),
		Steps:       trimAll(in.Steps),
		Nutrition:   in.Nutrition,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateRecipe(ctx, rec); err != nil {
		return RecipeDetail{}, err
	}
	s.invalidate(ctx, recipecache.Mutation{
		Kind:   recipecache.RecipeCreated,
		Recipe: recipecache.RecipeRef{ID: rec.ID, Category: rec.Category, Cuisine: rec.Cuisine, Author: actor.UserName},
	})
	return rec.detail(RatingSummary{}), nil
}

func (s *Service) UpdateRecipe(ctx context.Context, actor User, id string, in UpdateRecipeInput) (RecipeDetail, error) {
	existing, err := s.ownedRecipe(ctx, actor, id, "You are not authorized to edit this recipe")
	if err != nil {
		return RecipeDetail{}, err
	}
	updated, err := applyUpdate(existing, in)
	if err != nil {
		return RecipeDetail{}, err
	}
	updated.UpdatedAt = s.clk.Now()

	previous, err := s.ref(ctx, existing)
	if err != nil {
		return RecipeDetail{}, err
	}
	if err := s.repo.UpdateRecipe(ctx, updated); err != nil {
		return RecipeDetail{}, s.mapNotFound(err, "recipe")
	}
	current := previous
	current.Category = updated.Category
	current.Cuisine = updated.Cuisine
	s.invalidate(ctx, recipecache.Mutation{
		Kind:     recipecache.RecipeUpdated,
		Recipe:   current,
		Previous: &previous,
	})

	rs, err := s.repo.RatingSummary(ctx, id)
	if err != nil {
		return RecipeDetail{}, err
	}
	return updated.detail(rs), nil
}

func (s *Service) DeleteRecipe(ctx context.Context, actor User, id string) error {
	existing, err := s.ownedRecipe(ctx, actor, id, "You are not authorized to delete this recipe")
	if err != nil {
		return err
	}
	// bookmarkers are gone once the delete cascades
	ref, err := s.ref(ctx, existing)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteRecipe(ctx, id); err != nil {
		return s.mapNotFound(err, "recipe")
	}
	s.invalidate(ctx, recipecache.Mutation{Kind: recipecache.RecipeDeleted, Recipe: ref})
	return nil
}

func (s *Service) GetRecipe(ctx context.Context, id string) (RecipeDetail, error) {
	rec, err := s.repo.GetRecipe(ctx, id)
	if err != nil {
		return RecipeDetail{}, s.mapNotFound(err, "recipe")
	}
	rs, err := s.repo.RatingSummary(ctx, id)
	if err != nil {
		return RecipeDetail{}, err
	}
	return rec.detail(rs), nil
}

// ListRecipes returns every recipe, oldest first.
func (s *Service) ListRecipes(ctx context.Context) ([]RecipeSummary, error) {
	return s.listWhere(ctx, func(Recipe) bool { return true })
}

// Curated returns the first limit recipes by creation.
func (s *Service) Curated(ctx context.Context, limit int) ([]RecipeSummary, error) {
	if limit < 1 || limit > MaxCuratedLimit {
		return nil, validation("limit", "must be between 1 and 50")
	}
	all, err := s.ListRecipes(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Explore returns the best rated recipes.
func (s *Service) Explore(ctx context.Context) ([]RecipeSummary, error) {
	all, err := s.ListRecipes(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].AverageRating > all[j].AverageRating
	})
	return head(all, highlightSize), nil
}

// Discovery returns the newest recipes, newest first.
func (s *Service) Discovery(ctx context.Context) ([]RecipeSummary, error) {
	all, err := s.ListRecipes(ctx)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return head(all, highlightSize), nil
}

// Search matches query case-insensitively against title, category, cuisine and meal type.
func (s *Service) Search(ctx context.Context, query string) ([]RecipeSummary, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, validation("query", "must be non-empty")
	}
	return s.listWhere(ctx, func(r Recipe) bool {
		for _, field := range []string{r.Title, r.Category, r.Cuisine, r.MealType} {
			if strings.Contains(strings.ToLower(field), q) {
				return true
			}
		}
		return false
	})
}

// ByCategory returns the recipes whose category equals category exactly.
func (s *Service) ByCategory(ctx context.Context, category string) ([]RecipeSummary, error) {
	if category == "" {
		return nil, validation("category", "must be non-empty")
	}
	return s.listWhere(ctx, func(r Recipe) bool { return r.Category == category })
}

// ByCuisine returns the recipes whose cuisine equals cuisine exactly.
func (s *Service) ByCuisine(ctx context.Context, cuisine string) ([]RecipeSummary, error) {
	if cuisine == "" {
		return nil, validation("cuisine", "must be non-empty")
	}
	return s.listWhere(ctx, func(r Recipe) bool { return r.Cuisine == cuisine })
}

// ---- ratings

// Rate stores the actor's rating for a recipe and returns the new aggregate.
func (s *Service) Rate(ctx context.Context, actor User, recipeID string, value int) (RatingSummary, error) {
	if value < 1 || value > 5 {
		return RatingSummary{}, validation("value", "must be between 1 and 5")
	}
	rec, err := s.repo.GetRecipe(ctx, recipeID)
	if err != nil {
		return RatingSummary{}, s.mapNotFound(err, "recipe")
	}
	if err := s.repo.UpsertRating(ctx, Rating{RecipeID: recipeID, UserID: actor.ID, Value: value}); err != nil {
		return RatingSummary{}, s.mapNotFound(err, "recipe")
	}
	rs, err := s.repo.RatingSummary(ctx, recipeID)
	if err != nil {
		return RatingSummary{}, err
	}
	if ref, err := s.ref(ctx, rec); err == nil {
		s.invalidate(ctx, recipecache.Mutation{Kind: recipecache.RatingSubmitted, Recipe: ref})
	} else {
		// rating is committed; invalidate what does not need the lookup
		s.invalidate(ctx, recipecache.Mutation{
			Kind:   recipecache.RatingSubmitted,
			Recipe: recipecache.RecipeRef{ID: rec.ID, Category: rec.Category, Cuisine: rec.Cuisine},
		})
	}
	return rs, nil
}

// ---- users

func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	userName := strings.TrimSpace(in.UserName)
	if err := validateUserName(userName); err != nil {
		return User{}, err
	}
	u := User{
		ID:        s.newID(),
		UserName:  userName,
		FullName:  strings.TrimSpace(in.FullName),
		Bio:       strings.TrimSpace(in.Bio),
		CreatedAt: s.clk.Now(),
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, ErrUserNameTaken) {
			return User{}, validation("userName", "already taken")
		}
		return User{}, err
	}
	// a cached profile can not exist for a new username, nothing to invalidate
	return u, nil
}

func (s *Service) UpdateProfile(ctx context.Context, actor User, in UpdateProfileInput) (User, error) {
	updated := actor
	if in.UserName != nil {
		userName := strings.TrimSpace(*in.UserName)
		if err := validateUserName(userName); err != nil {
			return User{}, err
		}
		updated.UserName = userName
	}
	if in.FullName != nil {
		updated.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.Bio != nil {
		updated.Bio = strings.TrimSpace(*in.Bio)
	}
	if err := s.repo.UpdateUser(ctx, updated); err != nil {
		if errors.Is(err, ErrUserNameTaken) {
			return User{}, validation("userName", "already taken")
		}
		return User{}, s.mapNotFound(err, "user")
	}
	s.invalidate(ctx, recipecache.Mutation{
		Kind:             recipecache.ProfileUpdated,
		Username:         updated.UserName,
		PreviousUsername: actor.UserName,
	})
	return updated, nil
}

// Profile returns a user's public page with the recipes they authored.
func (s *Service) Profile(ctx context.Context, userName string) (Profile, error) {
	u, err := s.repo.GetUserByName(ctx, userName)
	if err != nil {
		return Profile{}, s.mapNotFound(err, "user")
	}
	authored, err := s.listWhere(ctx, func(r Recipe) bool { return r.AuthorID == u.ID })
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		ID:        u.ID,
		UserName:  u.UserName,
		FullName:  u.FullName,
		Bio:       u.Bio,
		CreatedAt: u.CreatedAt,
		Recipes:   authored,
	}, nil
}

// ---- bookmarks

func (s *Service) AddBookmark(ctx context.Context, actor User, recipeID string) error {
	if recipeID == "" {
		return validation("recipeId", "must be non-empty")
	}
	if err := s.repo.AddBookmark(ctx, actor.ID, recipeID); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return &Error{Status: 400, Code: "ALREADY_BOOKMARKED", Message: "Recipe already bookmarked"}
		}
		return s.mapNotFound(err, "recipe")
	}
	s.invalidate(ctx, recipecache.Mutation{Kind: recipecache.BookmarkAdded, Username: actor.UserName})
	return nil
}

func (s *Service) RemoveBookmark(ctx context.Context, actor User, recipeID string) error {
	if recipeID == "" {
		return validation("recipeId", "must be non-empty")
	}
	if err := s.repo.RemoveBookmark(ctx, actor.ID, recipeID); err != nil {
		return s.mapNotFound(err, "bookmark")
	}
	s.invalidate(ctx, recipecache.Mutation{Kind: recipecache.BookmarkRemoved, Username: actor.UserName})
	return nil
}

// Bookmarks returns the recipes bookmarked by userName, in bookmark order.
func (s *Service) Bookmarks(ctx context.Context, userName string) (BookmarkList, error) {
	u, err := s.repo.GetUserByName(ctx, userName)
	if err != nil {
		return BookmarkList{}, s.mapNotFound(err, "user")
	}
	ids, err := s.repo.Bookmarks(ctx, u.ID)
	if err != nil {
		return BookmarkList{}, err
	}
	out := BookmarkList{UserName: u.UserName, Recipes: make([]RecipeSummary, 0, len(ids))}
	for _, id := range ids {
		rec, err := s.repo.GetRecipe(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return BookmarkList{}, err
		}
		rs, err := s.repo.RatingSummary(ctx, id)
		if err != nil {
			return BookmarkList{}, err
		}
		out.Recipes = append(out.Recipes, rec.summary(rs))
	}
	out.Count = len(out.Recipes)
	return out, nil
}

// ---- helpers

func (s *Service) ownedRecipe(ctx context.Context, actor User, id, denied string) (Recipe, error) {
	rec, err := s.repo.GetRecipe(ctx, id)
	if err != nil {
		return Recipe{}, s.mapNotFound(err, "recipe")
	}
	if rec.AuthorID != actor.ID {
		return Recipe{}, forbidden(denied)
	}
	return rec, nil
}

// ref collects the usernames a recipe's cache keys are derived from.
func (s *Service) ref(ctx context.Context, rec Recipe) (recipecache.RecipeRef, error) {
	ref := recipecache.RecipeRef{ID: rec.ID, Category: rec.Category, Cuisine: rec.Cuisine}
	if author, err := s.repo.GetUser(ctx, rec.AuthorID); err == nil {
		ref.Author = author.UserName
	} else if !errors.Is(err, ErrNotFound) {
		return recipecache.RecipeRef{}, err
	}
	userIDs, err := s.repo.Bookmarkers(ctx, rec.ID)
	if err != nil {
		return recipecache.RecipeRef{}, err
	}
	for _, id := range userIDs {
		u, err := s.repo.GetUser(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return recipecache.RecipeRef{}, err
		}
		ref.Bookmarkers = append(ref.Bookmarkers, u.UserName)
	}
	sort.Strings(ref.Bookmarkers)
	return ref, nil
}

func (s *Service) listWhere(ctx context.Context, keep func(Recipe) bool) ([]RecipeSummary, error) {
	all, err := s.repo.ListRecipes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RecipeSummary, 0, len(all))
	for _, rec := range all {
		if !keep(rec) {
			continue
		}
		rs, err := s.repo.RatingSummary(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, rec.summary(rs))
	}
	return out, nil
}

func (s *Service) mapNotFound(err error, what string) error {
	if errors.Is(err, ErrNotFound) {
		return notFound(what)
	}
	return err
}

func head(in []RecipeSummary, n int) []RecipeSummary {
	if len(in) > n {
		return in[:n]
	}
	return in
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
