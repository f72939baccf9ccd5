package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	recipecache "github.com/fieldmarcel/recipe-cache"
	"github.com/fieldmarcel/recipe-cache/cache"
	"github.com/fieldmarcel/recipe-cache/internal/recipes"
	cachekey "github.com/fieldmarcel/recipe-cache/pkg/cache-key"
)

const healthTimeout = time.Second

// Deps are the collaborators of the API router.
type Deps struct {
	Service *recipes.Service
	Cache   *recipecache.Interceptor
	// Store is pinged by /healthz.
	Store  cache.Store
	Logger zerolog.Logger
	// Gatherer backs /metrics. The endpoint is not mounted if nil.
	Gatherer prometheus.Gatherer
}

// NewRouter constructs the API HTTP router.
// Read endpoints are wrapped by the cache interceptor, each with the key
// template its invalidation rules use.
func NewRouter(d Deps) http.Handler {
	h := &handlers{svc: d.Service}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(d.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(devAuth)

	r.Get("/healthz", healthz(d.Store))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	cached := func(key recipecache.KeyFunc) func(http.Handler) http.Handler {
		return d.Cache.Middleware(key)
	}

	r.Route("/recipes", func(r chi.Router) {
		r.With(cached(fixed(cachekey.AllRecipes))).Get("/", h.listRecipes)
		r.With(cached(fixed(cachekey.Curated))).Get("/fixed", h.curated)
		r.With(cached(fixed(cachekey.Explore))).Get("/explore", h.explore)
		r.With(cached(fixed(cachekey.Discovery))).Get("/moreideas", h.discovery)
		r.With(cached(fixed(cachekey.Search))).Get("/search", h.search)
		r.With(cached(templated(cachekey.Category, "category"))).Get("/category/{category}", h.byCategory)
		r.With(cached(templated(cachekey.Cuisine, "cuisine"))).Get("/cuisine/{cuisine}", h.byCuisine)
		r.With(cached(templated(cachekey.RecipeDetail, "id"))).Get("/{id}", h.getRecipe)

		r.Post("/", h.createRecipe)
		r.Put("/{id}", h.updateRecipe)
		r.Delete("/{id}", h.deleteRecipe)
	})

	r.Post("/ratings", h.rate)

	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.register)
		r.Put("/profile", h.updateProfile)
		r.Post("/bookmarks", h.addBookmark)
		r.Delete("/bookmarks", h.removeBookmark)

		r.With(cached(templated(cachekey.Profile, "userName"))).Get("/{userName}", h.profile)
		r.With(cached(templated(cachekey.Bookmarks, "userName"))).Get("/{userName}/bookmarks", h.bookmarks)
	})

	return r
}

// fixed keys a listing by its path and raw query.
func fixed(path string) recipecache.KeyFunc {
	return func(r *http.Request) string {
		return cachekey.WithQuery(path, r)
	}
}

// templated keys a route by applying template to the decoded route parameter.
func templated(template func(string) string, param string) recipecache.KeyFunc {
	return func(r *http.Request) string {
		return cachekey.WithQuery(template(urlParam(r, param)), r)
	}
}

// urlParam returns the decoded route parameter.
// chi routes on the escaped path when the request has one.
func urlParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}

func healthz(store cache.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				hlog.FromRequest(r).Warn().Err(err).Msg("Cache store unreachable")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("cache unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
