package recipecache

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/fieldmarcel/recipe-cache/cache"
	cachekey "github.com/fieldmarcel/recipe-cache/pkg/cache-key"
	serializer "github.com/fieldmarcel/recipe-cache/pkg/response-serializer"
	tee "github.com/fieldmarcel/recipe-cache/pkg/response-writer-tee"
	"github.com/fieldmarcel/recipe-cache/rfc9211"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const (
	DefaultTTL          = 24 * time.Hour
	DefaultReadTimeout  = 250 * time.Millisecond
	DefaultWriteTimeout = 2 * time.Second
	DefaultName         = "recipe-cache"
)

// errReadTimeout is reported when the store does not answer a read in time.
var errReadTimeout = errors.New("cache read timed out")

type Config struct {
	// Storage for cache entries.
	Store cache.Store
	// Lifetime of every entry written. DefaultTTL if zero.
	TTL time.Duration
	// Upper bound for a cache read before it is treated as a miss.
	ReadTimeout time.Duration
	// Upper bound for a single background write or delete.
	WriteTimeout time.Duration
	// Cache identifier used in the Cache-Status header.
	Name string
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Metrics to record into. Unregistered collectors are used if nil.
	Metrics *Metrics
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Metrics == nil {
		c.Metrics = NewMetrics(nil)
	}
	return c
}

func (c Config) logger(component string) zerolog.Logger {
	var logger zerolog.Logger
	if c.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	} else {
		logger = *c.Logger
	}
	return logger.With().Str("component", component).Logger()
}

// KeyFunc derives the cache key of a read request.
type KeyFunc func(r *http.Request) string

// Interceptor serves cached JSON bodies for read requests and populates the
// store from the output of the handler it wraps.
//
// Store failures never fail a request: a read error or timeout is a miss,
// a write error only means the next read is a miss too.
type Interceptor struct {
	cache        cache.Store
	ttl          time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	name         string
	log          zerolog.Logger
	metrics      *Metrics

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// New creates the interceptor. The store must be open.
func New(config Config) *Interceptor {
	config = config.withDefaults()
	return &Interceptor{
		cache:        config.Store,
		ttl:          config.TTL,
		readTimeout:  config.ReadTimeout,
		writeTimeout: config.WriteTimeout,
		name:         config.Name,
		log:          config.logger("interceptor"),
		metrics:      config.Metrics,
	}
}

// Middleware returns a decorator caching the wrapped handler under keyFn.
// A nil keyFn uses the request URI verbatim.
func (a *Interceptor) Middleware(keyFn KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return a.Handler(keyFn, next)
	}
}

// Handler wraps next. Only GET and HEAD requests are looked up and stored.
func (a *Interceptor) Handler(keyFn KeyFunc, next http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = cachekey.FromRequest
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		key := keyFn(r)
		log := a.requestLogger(r).With().Str("key", key).Logger()
		cs := rfc9211.CacheStatus{Cache: a.name}

		body, found, err := a.lookup(r.Context(), key, log)
		if found {
			cs.Hit()
			a.metrics.lookup(resultHit)
			log.Trace().Msg("Cache hit and serving")
			sendStored(w, r, body, cs, log)
			return
		}

		if err != nil {
			a.metrics.lookup(resultError)
			cs.Forward(rfc9211.FwdReasonMiss)
			cs.Detail = "store unavailable"
		} else {
			a.metrics.lookup(resultMiss)
			cs.Forward(rfc9211.FwdReasonUriMiss)
		}
		// set cache-status on underlying rw only, it is not part of the stored body
		w.Header().Set(rfc9211.HeaderName, cs.String())

		rw := tee.NewResponseSaver(w)
		next.ServeHTTP(rw, r)
		rw.Finish()

		if r.Method == http.MethodHead {
			return
		}
		a.save(key, rw, log)
	})
}

// Wait blocks until all background cache writes have finished.
func (a *Interceptor) Wait() {
	a.pending.Wait()
}

// Shutdown stops scheduling background store operations and waits for the
// running ones. Requests still in flight keep being served, their responses
// are just not stored. Close the store only after Shutdown returns.
func (a *Interceptor) Shutdown() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.pending.Wait()
}

// lookup reads key from the store, bounded by the read timeout.
// A corrupt entry is purged and reported as a miss.
func (a *Interceptor) lookup(ctx context.Context, key string, log zerolog.Logger) ([]byte, bool, error) {
	stored, found, err := a.getWithTimeout(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("Could not read from cache, serving from handler")
		return nil, false, err
	}
	if !found {
		log.Trace().Msg("Cache miss")
		return nil, false, nil
	}
	body, err := serializer.Decode(stored)
	if err != nil {
		// in case we have a corrupted cache entry, we delete it and serve the request
		log.Error().Err(err).Msg("Could not decode cache entry, purging")
		a.background(func(ctx context.Context) error {
			return a.cache.Delete(ctx, key)
		}, "delete", key)
		return nil, false, nil
	}
	return body, true, nil
}

type getResult struct {
	value []byte
	found bool
	err   error
}

// getWithTimeout does not rely on the store honouring ctx: a store call that
// hangs is abandoned once the timeout passes.
func (a *Interceptor) getWithTimeout(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.readTimeout)
	defer cancel()

	done := make(chan getResult, 1)
	go func() {
		value, found, err := a.cache.Get(ctx, key)
		done <- getResult{value, found, err}
	}()

	select {
	case res := <-done:
		return res.value, res.found, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, false, errReadTimeout
		}
		return nil, false, ctx.Err()
	}
}

// save stores the captured response in a goroutine (do not slow down response).
func (a *Interceptor) save(key string, rw *tee.ResponseSaver, log zerolog.Logger) {
	if status := rw.StatusCode(); status != http.StatusOK {
		a.metrics.write(resultSkipped)
		log.Trace().Int("http-status", status).Msg("Non-cacheable response")
		return
	}
	value, err := serializer.Encode(rw.Body())
	if err != nil {
		a.metrics.write(resultSkipped)
		log.Warn().Err(err).Msg("Could not serialize response, not caching")
		return
	}
	a.background(func(ctx context.Context) error {
		if err := a.cache.Set(ctx, key, value, a.ttl); err != nil {
			return err
		}
		a.metrics.write(resultStored)
		log.Trace().Dur("ttl", a.ttl).Msg("Cache write")
		return nil
	}, "set", key)
}

// background runs a store operation detached from the request.
func (a *Interceptor) background(op func(ctx context.Context) error, name, key string) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.log.Debug().Str("op", name).Str("key", key).Msg("Interceptor shut down, skipping cache store operation")
		return
	}
	a.pending.Add(1)
	a.mu.Unlock()
	go func() {
		defer a.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.writeTimeout)
		defer cancel()
		if err := op(ctx); err != nil {
			a.metrics.storeError(name)
			if name == "set" {
				a.metrics.write(resultError)
			}
			a.log.Warn().Err(err).Str("op", name).Str("key", key).Msg("Cache store operation failed")
		}
	}()
}

// requestLogger returns the logger from the request context.
// If no logger is found, it will return the interceptor logger.
func (a *Interceptor) requestLogger(r *http.Request) *zerolog.Logger {
	logger := hlog.FromRequest(r)
	if logger.GetLevel() == zerolog.Disabled {
		return &a.log
	}
	return logger
}

func sendStored(w http.ResponseWriter, r *http.Request, body []byte, cs rfc9211.CacheStatus, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(rfc9211.HeaderName, cs.String())
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("Could not write response body to client")
	}
}
