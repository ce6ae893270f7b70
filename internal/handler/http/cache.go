package http

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shopcore/storefront-api/internal/cache"
)

// PageStore is the byte-level cache backend. Implemented by cache.Redis.
type PageStore interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	SetBytes(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// CachePolicy configures the list-response cache for one endpoint.
type CachePolicy struct {
	Namespace string
	TTL       time.Duration
	// VaryAuth mixes the Authorization header into the key so one caller's
	// cached page is never served to another.
	VaryAuth bool
}

type cachedPage struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// PageCache caches successful GET responses for the policy's TTL and replays
// the exact stored bytes on a hit. There is no write-path invalidation:
// staleness up to the TTL is an accepted trade-off of this design.
func PageCache(store PageStore, p CachePolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := cacheKey(p, r)

			if raw, err := store.GetBytes(r.Context(), key); err == nil {
				var page cachedPage
				if err := json.Unmarshal(raw, &page); err == nil {
					w.Header().Set("Content-Type", page.ContentType)
					w.WriteHeader(page.Status)
					_, _ = w.Write(page.Body)
					return
				}
			} else if !errors.Is(err, cache.ErrMiss) {
				log.Warn().Err(err).Str("key", key).Msg("page cache read failed")
			}

			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status != http.StatusOK {
				return
			}

			raw, err := json.Marshal(cachedPage{
				Status:      rec.status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.buf.Bytes(),
			})
			if err != nil {
				return
			}
			if err := store.SetBytes(r.Context(), key, raw, p.TTL); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("page cache write failed")
			}
		})
	}
}

func cacheKey(p CachePolicy, r *http.Request) string {
	// url.Values.Encode sorts by key, so equivalent queries share an entry.
	key := p.Namespace + ":" + r.URL.Path + "?" + r.URL.Query().Encode()
	if p.VaryAuth {
		sum := sha256.Sum256([]byte(r.Header.Get("Authorization")))
		key += ":" + hex.EncodeToString(sum[:])
	}
	return key
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (rec *responseRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *responseRecorder) Write(b []byte) (int, error) {
	rec.buf.Write(b)
	return rec.ResponseWriter.Write(b)
}
