package recipes_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	recipecache "github.com/fieldmarcel/recipe-cache"
	"github.com/fieldmarcel/recipe-cache/internal/recipes"
	"github.com/fieldmarcel/recipe-cache/internal/recipes/memrepo"
)

type recorder struct {
	mu        sync.Mutex
	mutations []recipecache.Mutation
	err       error
}

func (r *recorder) Invalidate(_ context.Context, m recipecache.Mutation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutations = append(r.mutations, m)
	return r.err
}

func (r *recorder) last(t *testing.T) recipecache.Mutation {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.mutations) == 0 {
		t.Fatalf("no mutation reported")
	}
	return r.mutations[len(r.mutations)-1]
}

// stepClock advances one minute per reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

func newService(t *testing.T) (*recipes.Service, *recorder) {
	t.Helper()
	rec := &recorder{}
	svc := recipes.NewService(memrepo.NewRepo(), rec).
		WithClock(&stepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	return svc, rec
}

func register(t *testing.T, svc *recipes.Service, userName string) recipes.User {
	t.Helper()
	u, err := svc.Register(context.Background(), recipes.RegisterInput{UserName: userName})
	if err != nil {
		t.Fatalf("register %s: %v", userName, err)
	}
	return u
}

func recipeInput(title, category, cuisine string) recipes.CreateRecipeInput {
	return recipes.CreateRecipeInput{
		Title:       title,
		Description: "A " + title,
		Category:    category,
		Cuisine:     cuisine,
		MealType:    "Dinner",
		CookTime:    "30 min",
		Servings:    2,
		Ingredients: []string{"water", "salt"},
		Steps:       []string{"boil", "serve"},
	}
}

func create(t *testing.T, svc *recipes.Service, actor recipes.User, title, category, cuisine string) recipes.RecipeDetail {
	t.Helper()
	r, err := svc.CreateRecipe(context.Background(), actor, recipeInput(title, category, cuisine))
	if err != nil {
		t.Fatalf("create %s: %v", title, err)
	}
	return r
}

func appErr(t *testing.T, err error, status int) {
	t.Helper()
	var e *recipes.Error
	if !errors.As(err, &e) || e.Status != status {
		t.Fatalf("expected application error %d, got %v", status, err)
	}
}

func TestCreateRecipeReportsMutation(t *testing.T) {
	svc, rec := newService(t)
	alice := register(t, svc, "alice")

	r := create(t, svc, alice, "Tom Yum", "Soup", "Thai")

	m := rec.last(t)
	if m.Kind != recipecache.RecipeCreated || m.Recipe.ID != r.ID || m.Recipe.Category != "Soup" ||
		m.Recipe.Cuisine != "Thai" || m.Recipe.Author != "alice" {
		t.Fatalf("mutation is %+v", m)
	}
}

func TestCreateRecipeValidates(t *testing.T) {
	svc, rec := newService(t)
	alice := register(t, svc, "alice")

	in := recipeInput("Tom Yum", "", "Thai")
	_, err := svc.CreateRecipe(context.Background(), alice, in)

	appErr(t, err, 400)
	if len(rec.mutations) != 0 {
		t.Fatalf("mutation reported for rejected write")
	}
}

func TestUpdateRecipeReportsPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t)
	alice := register(t, svc, "alice")
	bob := register(t, svc, "bob")
	r := create(t, svc, alice, "Tom Yum", "Soup", "Thai")
	if err := svc.AddBookmark(ctx, bob, r.ID); err != nil {
		t.Fatal(err)
	}

	category := "Stew"
	updated, err := svc.UpdateRecipe(ctx, alice, r.ID, recipes.UpdateRecipeInput{Category: &category})
	if err != nil {
		t.Fatal(err)
	}

	if updated.Category != "Stew" || updated.Title != "Tom Yum" {
		t.Fatalf("updated recipe is %+v", updated)
	}
	m := rec.last(t)
	if m.Kind != recipecache.RecipeUpdated || m.Recipe.Category != "Stew" || m.Previous == nil || m.Previous.Category != "Soup" {
		t.Fatalf("mutation is %+v", m)
	}
	if len(m.Recipe.Bookmarkers) != 1 || m.Recipe.Bookmarkers[0] != "bob" {
		t.Fatalf("bookmarkers are %v", m.Recipe.Bookmarkers)
	}
}

func TestOnlyAuthorMayChangeRecipe(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	alice := register(t, svc, "alice")
	mallory := register(t, svc, "mallory")
	r := create(t, svc, alice, "Tom Yum", "Soup", "Thai")

	title := "Mine now"
	_, err := svc.UpdateRecipe(ctx, mallory, r.ID, recipes.UpdateRecipeInput{Title: &title})
	appErr(t, err, 403)
	appErr(t, svc.DeleteRecipe(ctx, mallory, r.ID), 403)
	appErr(t, svc.DeleteRecipe(ctx, alice, "missing"), 404)
}

func TestDeleteRecipeCascades(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t)
	alice := register(t, svc, "alice")
	bob := register(t, svc, "bob")
	r := create(t, svc, alice, "Tom Yum", "Soup", "Thai")
	svc.AddBookmark(ctx, bob, r.ID)
	svc.Rate(ctx, bob, r.ID, 5)

	if err := svc.DeleteRecipe(ctx, alice, r.ID); err != nil {
		t.Fatal(err)
	}

	m := rec.last(t)
	if m.Kind != recipecache.RecipeDeleted || len(m.Recipe.Bookmarkers) != 1 || m.Recipe.Author != "alice" {
		t.Fatalf("mutation is %+v", m)
	}
	list, err := svc.Bookmarks(ctx, "bob")
	if err != nil || list.Count != 0 {
		t.Fatalf("bookmarks are %+v, %v", list, err)
	}
	_, err = svc.GetRecipe(ctx, r.ID)
	appErr(t, err, 404)
}

func TestRatingAggregate(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t)
	alice := register(t, svc, "alice")
	r := create(t, svc, alice, "Tom Yum", "Soup", "Thai")
	for i := 0; i < 10; i++ {
		u := register(t, svc, fmt.Sprintf("rater%d", i))
		if _, err := svc.Rate(ctx, u, r.ID, 4); err != nil {
			t.Fatal(err)
		}
	}
	u := register(t, svc, "newcomer")

	rs, err := svc.Rate(ctx, u, r.ID, 5)
	if err != nil {
		t.Fatal(err)
	}

	if rs.RatingCount != 11 || math.Abs(rs.AverageRating-45.0/11.0) > 1e-9 {
		t.Fatalf("summary is %+v", rs)
	}
	if m := rec.last(t); m.Kind != recipecache.RatingSubmitted || m.Recipe.ID != r.ID {
		t.Fatalf("mutation is %+v", m)
	}
}

func TestRatingIsUpserted(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	alice := register(t, svc, "alice")
	r := create(t, svc, alice, "Tom Yum", "Soup", "Thai")

	svc.Rate(ctx, alice, r.ID, 1)
	rs, _ := svc.Rate(ctx, alice, r.ID, 3)

	if rs.RatingCount != 1 || rs.AverageRating != 3 {
		t.Fatalf("summary is %+v", rs)
	}
	_, err := svc.Rate(ctx, alice, r.ID, 6)
	appErr(t, err, 400)
	_, err = svc.Rate(ctx, alice, "missing", 3)
	appErr(t, err, 404)
}

func TestListings(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	alice := register(t, svc, "alice")
	var ids []string
	for i := 0; i < 8; i++ {
		ids = append(ids, create(t, svc, alice, fmt.Sprintf("Dish %d", i), "Main", "Thai").ID)
	}
	svc.Rate(ctx, alice, ids[5], 5)
	svc.Rate(ctx, alice, ids[2], 4)

	curated, _ := svc.Curated(ctx, recipes.DefaultCuratedLimit)
	if len(curated) != 3 || curated[0].ID != ids[0] {
		t.Fatalf("curated is %+v", curated)
	}
	explore, _ := svc.Explore(ctx)
	if len(explore) != 6 || explore[0].ID != ids[5] || explore[1].ID != ids[2] {
		t.Fatalf("explore is %+v", explore)
	}
	discovery, _ := svc.Discovery(ctx)
	if len(discovery) != 6 || discovery[0].ID != ids[7] {
		t.Fatalf("discovery is %+v", discovery)
	}
	_, err := svc.Curated(ctx, 0)
	appErr(t, err, 400)
}

func TestFiltersAndSearch(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	alice := register(t, svc, "alice")
	create(t, svc, alice, "Tom Yum", "Soup", "Thai")
	create(t, svc, alice, "Minestrone", "Soup", "Italian")
	create(t, svc, alice, "Tiramisu", "Dessert", "Italian")

	soups, _ := svc.ByCategory(ctx, "Soup")
	if len(soups) != 2 {
		t.Fatalf("soups are %+v", soups)
	}
	if lower, _ := svc.ByCategory(ctx, "soup"); len(lower) != 0 {
		t.Fatalf("category match is not exact: %+v", lower)
	}
	italian, _ := svc.ByCuisine(ctx, "Italian")
	if len(italian) != 2 {
		t.Fatalf("italian is %+v", italian)
	}
	found, _ := svc.Search(ctx, "  SOUP ")
	if len(found) != 2 {
		t.Fatalf("search found %+v", found)
	}
	_, err := svc.Search(ctx, " ")
	appErr(t, err, 400)
}

func TestProfileRename(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t)
	alice := register(t, svc, "alice")
	register(t, svc, "bob")
	create(t, svc, alice, "Tom Yum", "Soup", "Thai")

	taken := "bob"
	_, err := svc.UpdateProfile(ctx, alice, recipes.UpdateProfileInput{UserName: &taken})
	appErr(t, err, 400)

	name := "alicia"
	updated, err := svc.UpdateProfile(ctx, alice, recipes.UpdateProfileInput{UserName: &name})
	if err != nil {
		t.Fatal(err)
	}

	m := rec.last(t)
	if m.Kind != recipecache.ProfileUpdated || m.Username != "alicia" || m.PreviousUsername != "alice" {
		t.Fatalf("mutation is %+v", m)
	}
	p, err := svc.Profile(ctx, "alicia")
	if err != nil || p.ID != updated.ID || len(p.Recipes) != 1 {
		t.Fatalf("profile is %+v, %v", p, err)
	}
	_, err = svc.Profile(ctx, "alice")
	appErr(t, err, 404)
}

func TestBookmarks(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t)
	alice := register(t, svc, "alice")
	bob := register(t, svc, "bob")
	r := create(t, svc, alice, "Tom Yum", "Soup", "Thai")

	if err := svc.AddBookmark(ctx, bob, r.ID); err != nil {
		t.Fatal(err)
	}
	if m := rec.last(t); m.Kind != recipecache.BookmarkAdded || m.Username != "bob" {
		t.Fatalf("mutation is %+v", m)
	}
	appErr(t, svc.AddBookmark(ctx, bob, r.ID), 400)
	appErr(t, svc.AddBookmark(ctx, bob, "missing"), 404)

	list, _ := svc.Bookmarks(ctx, "bob")
	if list.Count != 1 || list.Recipes[0].ID != r.ID {
		t.Fatalf("bookmarks are %+v", list)
	}
	if err := svc.RemoveBookmark(ctx, bob, r.ID); err != nil {
		t.Fatal(err)
	}
	if m := rec.last(t); m.Kind != recipecache.BookmarkRemoved {
		t.Fatalf("mutation is %+v", m)
	}
	appErr(t, svc.RemoveBookmark(ctx, bob, r.ID), 404)
}

func TestInvalidationErrorDoesNotFailWrite(t *testing.T) {
	svc, rec := newService(t)
	rec.err = errors.New("redis down")
	alice := register(t, svc, "alice")

	if _, err := svc.CreateRecipe(context.Background(), alice, recipeInput("Tom Yum", "Soup", "Thai")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
}

func TestActor(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	register(t, svc, "alice")

	if u, err := svc.Actor(ctx, "alice"); err != nil || u.UserName != "alice" {
		t.Fatalf("actor is %+v, %v", u, err)
	}
	_, err := svc.Actor(ctx, "")
	appErr(t, err, 401)
	_, err = svc.Actor(ctx, "nobody")
	appErr(t, err, 401)
}
