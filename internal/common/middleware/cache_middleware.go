package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tobangado69/vrpsolver/internal/cache"
)

// ResponseCache caches successful GET responses in Redis. Its main use is
// GET /solves/:runID/result: a solution is immutable once its run reaches
// a terminal state, and re-serializing a large tour set on every poll is
// wasted work.
type ResponseCache struct {
	store *cache.RedisCache
}

func NewResponseCache(store *cache.RedisCache) *ResponseCache {
	return &ResponseCache{store: store}
}

// CachedResponse is the stored form of one response.
type CachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type captureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *captureWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache serves matching GET requests from Redis and stores 200 responses
// for ttl. Non-GET methods and error responses pass through untouched.
func (rc *ResponseCache) Cache(ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := rc.key(c)

		var cached CachedResponse
		if err := rc.store.Get(c.Request.Context(), key, &cached); err == nil {
			c.Header("X-Cache-Status", "HIT")
			c.Data(cached.Status, cached.ContentType, cached.Body)
			c.Abort()
			return
		}

		c.Header("X-Cache-Status", "MISS")
		writer := &captureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer

		c.Next()

		if c.Writer.Status() != http.StatusOK {
			return
		}
		rc.store.Set(c.Request.Context(), key, CachedResponse{
			Status:      c.Writer.Status(),
			ContentType: c.Writer.Header().Get("Content-Type"),
			Body:        writer.body.Bytes(),
		}, ttl)
	}
}

// CacheSolution is sized for terminal solve results, which never change.
func (rc *ResponseCache) CacheSolution() gin.HandlerFunc {
	return rc.Cache(30 * time.Minute)
}

// CacheListing is sized for listings that grow as problems are submitted.
func (rc *ResponseCache) CacheListing() gin.HandlerFunc {
	return rc.Cache(time.Minute)
}

// key hashes path, query, and caller so one user's cached listing never
// serves another's.
func (rc *ResponseCache) key(c *gin.Context) string {
	keyData := c.Request.URL.Path + "?" + c.Request.URL.RawQuery
	if userID, ok := c.Get("user_id"); ok {
		keyData = fmt.Sprintf("%s|user:%v", keyData, userID)
	}
	sum := sha256.Sum256([]byte(keyData))
	return "response:" + hex.EncodeToString(sum[:])
}

// NoCache marks a response as uncacheable, used on status and stream
// endpoints whose payload changes every generation.
func NoCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Next()
	}
}
