package recipes

import "time"

// Recipe is the stored recipe record.
type Recipe struct {
	ID          string
	AuthorID    string
	Title       string
	Description string
	Category    string
	Cuisine     string
	MealType    string
	CookTime    string
	ReadyIn     string
	Servings    int
	Ingredients []string
	Steps       []string
	Nutrition   map[string]string
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// User is a registered profile. ID is immutable, UserName may change.
type User struct {
	ID        string
	UserName  string
	FullName  string
	Bio       string
	CreatedAt time.Time
}

// Rating is one user's score for one recipe.
type Rating struct {
	RecipeID string
	UserID   string
	Value    int
}

// RatingSummary aggregates all ratings of a recipe.
type RatingSummary struct {
	AverageRating float64 `json:"averageRating"`
	RatingCount   int     `json:"ratingCount"`
}

// RecipeSummary is the projection returned by listing endpoints.
type RecipeSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Cuisine  string `json:"cuisine"`
	MealType string `json:"mealType"`
	ImageURL string `json:"image,omitempty"`
	AuthorID string `json:"authorId"`
	RatingSummary
}

// RecipeDetail is the full recipe with its rating aggregate.
// It carries no per-user fields: the same body is served to every caller.
type RecipeDetail struct {
	ID          string            `json:"id"`
	AuthorID    string            `json:"authorId"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Cuisine     string            `json:"cuisine"`
	MealType    string            `json:"mealType"`
	CookTime    string            `json:"cookTime"`
	ReadyIn     string            `json:"readyIn,omitempty"`
	Servings    int               `json:"servings"`
	Ingredients []string          `json:"ingredients"`
	Steps       []string          `json:"steps"`
	Nutrition   map[string]string `json:"nutrition,omitempty"`
	ImageURL    string            `json:"image,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	RatingSummary
}

// Profile is a user's public page.
type Profile struct {
	ID        string          `json:"id"`
	UserName  string          `json:"userName"`
	FullName  string          `json:"fullName"`
	Bio       string          `json:"bio"`
	CreatedAt time.Time       `json:"createdAt"`
	Recipes   []RecipeSummary `json:"recipes"`
}

// BookmarkList is a user's bookmarked recipes.
type BookmarkList struct {
	UserName string          `json:"userName"`
	Count    int             `json:"count"`
	Recipes  []RecipeSummary `json:"recipes"`
}

// CreateRecipeInput holds the fields of a new recipe.
type CreateRecipeInput struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Cuisine     string            `json:"cuisine"`
	MealType    string            `json:"mealType"`
	CookTime    string            `json:"cookTime"`
	ReadyIn     string            `json:"readyIn"`
	Servings    int               `json:"servings"`
	Ingredients []string          `json:"ingredients"`
	Steps       []string          `json:"steps"`
	Nutrition   map[string]string `json:"nutrition"`
	ImageURL    string            `json:"image"`
}

// UpdateRecipeInput is a partial update; nil fields are left unchanged.
type UpdateRecipeInput struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Category    *string            `json:"category"`
	Cuisine     *string            `json:"cuisine"`
	MealType    *string            `json:"mealType"`
	CookTime    *string            `json:"cookTime"`
	ReadyIn     *string            `json:"readyIn"`
	Servings    *int               `json:"servings"`
	Ingredients *[]string          `json:"ingredients"`
	Steps       *[]string          `json:"steps"`
	Nutrition   *map[string]string `json:"nutrition"`
	ImageURL    *string            `json:"image"`
}

// RegisterInput holds the fields of a new profile.
type RegisterInput struct {
	UserName string `json:"userName"`
	FullName string `json:"fullName"`
	Bio      string `json:"bio"`
}

// UpdateProfileInput is a partial profile update.
type UpdateProfileInput struct {
	UserName *string `json:"userName"`
	FullName *string `json:"fullName"`
	Bio      *string `json:"bio"`
}

func (r Recipe) summary(rs RatingSummary) RecipeSummary {
	return RecipeSummary{
		ID:            r.ID,
		Title:         r.Title,
		Category:      r.Category,
		Cuisine:       r.Cuisine,
		MealType:      r.MealType,
		ImageURL:      r.ImageURL,
		AuthorID:      r.AuthorID,
		RatingSummary: rs,
	}
}

func (r Recipe) detail(rs RatingSummary) RecipeDetail {
	return RecipeDetail{
		ID:            r.ID,
		AuthorID:      r.AuthorID,
		Title:         r.Title,
		Description:   r.Description,
		Category:      r.Category,
		Cuisine:       r.Cuisine,
		MealType:      r.MealType,
		CookTime:      r.CookTime,
		ReadyIn:       r.ReadyIn,
		Servings:      r.Servings,
		Ingredients:   r.Ingredients,
		Steps:         r.Steps,
		Nutrition:     r.Nutrition,
		ImageURL:      r.ImageURL,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		RatingSummary: rs,
	}
}
