package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// CacheHeader reports whether a response was served from the cache.
const CacheHeader = "X-Cache"

type cachedResponse struct {
	status      int
	contentType string
	body        []byte
}

type recordingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache memoizes successful GET responses by request URI for ttl.
func Cache(store *cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.RequestURI()
		if v, found := store.Get(key); found {
			cached := v.(cachedResponse)
			c.Header(CacheHeader, "HIT")
			c.Data(cached.status, cached.contentType, cached.body)
			c.Abort()
			return
		}

		c.Header(CacheHeader, "MISS")
		rw := &recordingWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = rw

		c.Next()

		if status := rw.Status(); status >= 200 && status < 300 {
			store.Set(key, cachedResponse{
				status:      status,
				contentType: rw.Header().Get("Content-Type"),
				body:        append([]byte(nil), rw.body.Bytes()...),
			}, ttl)
		}
	}
}
