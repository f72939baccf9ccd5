package recipes

import "context"

// Repository persists recipes, users, ratings and bookmarks.
// Implementations return ErrNotFound, ErrAlreadyExists or ErrUserNameTaken
// (possibly wrapped) for the corresponding conditions.
type Repository interface {
	CreateRecipe(ctx context.Context, r Recipe) error
	UpdateRecipe(ctx context.Context, r Recipe) error
	// DeleteRecipe also removes the recipe's ratings and bookmarks.
	DeleteRecipe(ctx context.Context, id string) error
	GetRecipe(ctx context.Context, id string) (Recipe, error)
	// ListRecipes returns all recipes, oldest first.
	ListRecipes(ctx context.Context) ([]Recipe, error)

	// UpsertRating stores the rating, replacing the user's previous one.
	UpsertRating(ctx context.Context, r Rating) error
	RatingSummary(ctx context.Context, recipeID string) (RatingSummary, error)

	CreateUser(ctx context.Context, u User) error
	UpdateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByName(ctx context.Context, userName string) (User, error)

	AddBookmark(ctx context.Context, userID, recipeID string) error
	RemoveBookmark(ctx context.Context, userID, recipeID string) error
	// Bookmarks returns the recipe IDs bookmarked by the user, in bookmark order.
	Bookmarks(ctx context.Context, userID string) ([]string, error)
	// Bookmarkers returns the IDs of the users who bookmarked the recipe.
	Bookmarkers(ctx context.Context, recipeID string) ([]string, error)
}
