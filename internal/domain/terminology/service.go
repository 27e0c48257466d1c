package terminology

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// DefaultLookupTimeout bounds a single store lookup. On expiry the resolver
// falls through to the embedded fallback table instead of propagating the
// failure.
const DefaultLookupTimeout = 250 * time.Millisecond

// Resolver turns (code, code system, language) triples into display text.
//
// Resolution order: display text already supplied by the source document is
// returned unchanged; otherwise the system is normalized, the cache and then
// the store are consulted, then the embedded fallback table, and as a last
// resort the code itself, so the field is never blank.
type Resolver struct {
	repo    Repository
	cache   *Cache
	timeout time.Duration
	log     zerolog.Logger
}

// NewResolver creates a resolver over the given store. A nil repo is allowed
// and restricts resolution to the cache and the embedded fallback table.
func NewResolver(repo Repository, cache *Cache, timeout time.Duration, log zerolog.Logger) *Resolver {
	if cache == nil {
		cache = NewCache(DefaultShardCount, DefaultCacheTTL)
	}
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Resolver{repo: repo, cache: cache, timeout: timeout, log: log}
}

// Resolve returns display text for the coded value. supplied is the display
// text the source document carried, if any; a non-empty supplied value is
// never overwritten. Resolve never returns an empty string for a non-empty
// code.
func (r *Resolver) Resolve(ctx context.Context, code, system, language, supplied string) string {
	if supplied != "" {
		return supplied
	}
	if code == "" {
		return ""
	}

	sys := NormalizeSystem(system)
	lang := NormalizeLanguage(language)

	if display, ok := r.cache.Get(code, sys, lang); ok {
		return display
	}

	if r.repo != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
		display, err := r.repo.GetDisplay(lookupCtx, code, sys, lang)
		cancel()
		switch {
		case err == nil && display != "":
			r.cache.Set(code, sys, lang, display)
			return display
		case errors.Is(err, ErrNotFound):
			// fall through to the embedded table
		case err != nil:
			r.log.Warn().Err(err).Str("code", code).Str("system", sys).
				Msg("terminology store lookup failed, using fallback")
		}
	}

	if display, ok := fallbackDisplay(code, sys); ok {
		r.cache.Set(code, sys, lang, display)
		return display
	}

	// Total miss: the code itself keeps the field from rendering blank.
	return code
}

// LookupResponse is a FHIR Parameters resource answering $lookup.
type LookupResponse struct {
	ResourceType string            `json:"resourceType"`
	Parameter    []LookupParameter `json:"parameter"`
}

// LookupParameter is a name/value pair in a Parameters resource.
type LookupParameter struct {
	Name        string `json:"name"`
	ValueString string `json:"valueString,omitempty"`
	ValueCode   string `json:"valueCode,omitempty"`
}

// Lookup implements the CodeSystem $lookup operation over the resolver
// chain. It reports ErrNotFound when neither the store nor the fallback
// table knows the code.
func (r *Resolver) Lookup(ctx context.Context, code, system, language string) (*LookupResponse, error) {
	display := r.Resolve(ctx, code, system, language, "")
	if display == code {
		if _, ok := fallbackDisplay(code, NormalizeSystem(system)); !ok {
			return nil, ErrNotFound
		}
	}
	return &LookupResponse{
		ResourceType: "Parameters",
		Parameter: []LookupParameter{
			{Name: "name", ValueString: display},
			{Name: "display", ValueString: display},
			{Name: "code", ValueCode: code},
		},
	}, nil
}
