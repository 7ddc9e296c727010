package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/relaychat/internal/common"
)

const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-ID"
)

// RequestID tags the request with an id and attaches a logger carrying it to
// the request context, so log.Ctx picks it up further down.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = common.NewULID()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		l := log.With().Str("request_id", id).Logger()
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
		c.Next()
	}
}

// Logger writes one line per finished request. A request cut short by an
// abort panic is still logged, flagged as aborted.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		completed := false
		defer func() {
			status := c.Writer.Status()
			l := log.Ctx(c.Request.Context())
			ev := l.Info()
			switch {
			case status >= 500:
				ev = l.Error()
			case !completed:
				ev = l.Warn()
			}
			if uid, ok := UserID(c); ok {
				ev = ev.Uint64("user_id", uid)
			}
			if !completed {
				ev = ev.Bool("aborted", true)
			}
			ev.Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Int("status", status).
				Int("bytes", c.Writer.Size()).
				Dur("latency", time.Since(start)).
				Str("client_ip", c.ClientIP()).
				Msg("request")
		}()
		c.Next()
		completed = true
	}
}
