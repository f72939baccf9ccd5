package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fieldmarcel/recipe-cache/internal/recipes"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	svc *recipes.Service
}

// actor resolves the authenticated user or writes the error response.
func (h *handlers) actor(w http.ResponseWriter, r *http.Request) (recipes.User, bool) {
	name, _ := UserNameFromContext(r.Context())
	u, err := h.svc.Actor(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return recipes.User{}, false
	}
	return u, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_JSON", "request body must be valid JSON", nil)
		return false
	}
	return true
}

func (h *handlers) listRecipes(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListRecipes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) curated(w http.ResponseWriter, r *http.Request) {
	limit := recipes.DefaultCuratedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeAPIError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid limit",
				map[string]any{"limit": "must be an integer"})
			return
		}
		limit = n
	}
	list, err := h.svc.Curated(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) explore(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Explore(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) discovery(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Discovery(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) byCategory(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ByCategory(r.Context(), urlParam(r, "category"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) byCuisine(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ByCuisine(r.Context(), urlParam(r, "cuisine"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) getRecipe(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetRecipe(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handlers) createRecipe(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var in recipes.CreateRecipeInput
	if !decode(w, r, &in) {
		return
	}
	rec, err := h.svc.CreateRecipe(r.Context(), actor, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *handlers) updateRecipe(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var in recipes.UpdateRecipeInput
	if !decode(w, r, &in) {
		return
	}
	rec, err := h.svc.UpdateRecipe(r.Context(), actor, urlParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handlers) deleteRecipe(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteRecipe(r.Context(), actor, urlParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Recipe deleted successfully"})
}

type rateRequest struct {
	RecipeID string `json:"recipeId"`
	Value    int    `json:"value"`
}

func (h *handlers) rate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var in rateRequest
	if !decode(w, r, &in) {
		return
	}
	rs, err := h.svc.Rate(r.Context(), actor, in.RecipeID, in.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

type userResponse struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
	FullName string `json:"fullName"`
	Bio      string `json:"bio"`
}

func toUserResponse(u recipes.User) userResponse {
	return userResponse{ID: u.ID, UserName: u.UserName, FullName: u.FullName, Bio: u.Bio}
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var in recipes.RegisterInput
	if !decode(w, r, &in) {
		return
	}
	u, err := h.svc.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

func (h *handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var in recipes.UpdateProfileInput
	if !decode(w, r, &in) {
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), actor, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *handlers) profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Profile(r.Context(), urlParam(r, "userName"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type bookmarkRequest struct {
	RecipeID string `json:"recipeId"`
}

func (h *handlers) addBookmark(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var in bookmarkRequest
	if !decode(w, r, &in) {
		return
	}
	if err := h.svc.AddBookmark(r.Context(), actor, in.RecipeID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "Recipe bookmarked"})
}

func (h *handlers) removeBookmark(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var in bookmarkRequest
	if !decode(w, r, &in) {
		return
	}
	if err := h.svc.RemoveBookmark(r.Context(), actor, in.RecipeID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Bookmark removed"})
}

func (h *handlers) bookmarks(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Bookmarks(r.Context(), urlParam(r, "userName"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
