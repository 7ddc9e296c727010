package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/relaychat/internal/common"
)

// Recovery turns panics into a 500 envelope. http.ErrAbortHandler is passed
// through so net/http can drop the connection mid-stream.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if r == http.ErrAbortHandler {
				panic(r)
			}
			log.Ctx(c.Request.Context()).Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Str("path", c.Request.URL.Path).
				Msg("recovered from panic")
			if c.Writer.Written() {
				return
			}
			common.Fail(c, http.StatusInternalServerError, 50001, "internal server error")
		}()
		c.Next()
	}
}
