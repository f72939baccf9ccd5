package recipes

import (
	"strings"
	"unicode"
)

const maxUserNameLen = 32

func validateCreate(in CreateRecipeInput) error {
	required := []struct {
		field string
		value string
	}{
		{"title", in.Title},
		{"description", in.Description},
		{"category", in.Category},
		{"cuisine", in.Cuisine},
		{"mealType", in.MealType},
		{"cookTime", in.CookTime},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return validation(r.field, "is required")
		}
	}
	if in.Servings < 1 {
		return validation("servings", "must be at least 1")
	}
	if len(trimAll(in.Ingredients)) == 0 {
		return validation("ingredients", "is required")
	}
	if len(trimAll(in.Steps)) == 0 {
		return validation("steps", "is required")
	}
	return nil
}

// applyUpdate returns rec with the set fields of in applied.
func applyUpdate(rec Recipe, in UpdateRecipeInput) (Recipe, error) {
	text := []struct {
		field    string
		in       *string
		out      *string
		required bool
	}{
		{"title", in.Title, &rec.Title, true},
		{"description", in.Description, &rec.Description, true},
		{"category", in.Category, &rec.Category, true},
		{"cuisine", in.Cuisine, &rec.Cuisine, true},
		{"mealType", in.MealType, &rec.MealType, true},
		{"cookTime", in.CookTime, &rec.CookTime, true},
		{"readyIn", in.ReadyIn, &rec.ReadyIn, false},
		{"image", in.ImageURL, &rec.ImageURL, false},
	}
	for _, t := range text {
		if t.in == nil {
			continue
		}
		v := strings.TrimSpace(*t.in)
		if t.required && v == "" {
			return Recipe{}, validation(t.field, "must be non-empty")
		}
		*t.out = v
	}
	if in.Servings != nil {
		if *in.Servings < 1 {
			return Recipe{}, validation("servings", "must be at least 1")
		}
		rec.Servings = *in.Servings
	}
	if in.Ingredients != nil {
		if rec.Ingredients = trimAll(*in.Ingredients); len(rec.Ingredients) == 0 {
			return Recipe{}, validation("ingredients", "must be non-empty")
		}
	}
	if in.Steps != nil {
		if rec.Steps = trimAll(*in.Steps); len(rec.Steps) == 0 {
			return Recipe{}, validation("steps", "must be non-empty")
		}
	}
	if in.Nutrition != nil {
		rec.Nutrition = *in.Nutrition
	}
	return rec, nil
}

func validateUserName(userName string) error {
	if userName == "" {
		return validation("userName", "is required")
	}
	if len(userName) > maxUserNameLen {
		return validation("userName", "must be at most 32 characters")
	}
	for _, r := range userName {
		if unicode.IsSpace(r) || r == '/' || r == '?' || r == '#' {
			return validation("userName", "must not contain whitespace, '/', '?' or '#'")
		}
	}
	return nil
}
