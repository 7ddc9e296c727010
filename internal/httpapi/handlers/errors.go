package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/relaychat/internal/ai"
	"github.com/suPer8Hu/relaychat/internal/chat"
	"github.com/suPer8Hu/relaychat/internal/common"
)

// failErr maps service errors onto the response envelope.
func failErr(c *gin.Context, err error) {
	var upErr *ai.UpstreamError
	switch {
	case errors.Is(err, chat.ErrUnauthenticated):
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
	case errors.Is(err, chat.ErrChatNotFound):
		common.Fail(c, http.StatusNotFound, 40004, "chat not found")
	case errors.Is(err, chat.ErrMessageNotFound):
		common.Fail(c, http.StatusNotFound, 40005, "message not found")
	case errors.Is(err, chat.ErrNoUserMessage):
		common.Fail(c, http.StatusBadRequest, 10003, err.Error())
	case errors.Is(err, chat.ErrEmptyContent):
		common.Fail(c, http.StatusBadRequest, 10002, err.Error())
	case errors.Is(err, chat.ErrQuotaExhausted):
		common.Fail(c, http.StatusTooManyRequests, 42901, "message limit reached")
	case errors.Is(err, ai.ErrMissingCredential):
		log.Ctx(c.Request.Context()).Error().Err(err).Msg("provider not configured")
		common.Fail(c, http.StatusInternalServerError, 50002, "provider not configured")
	case errors.As(err, &upErr):
		log.Ctx(c.Request.Context()).Error().Err(err).Msg("upstream provider error")
		common.Fail(c, http.StatusBadGateway, 50201, upErr.Error())
	default:
		log.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		common.Fail(c, http.StatusInternalServerError, 50001, "internal server error")
	}
}

// failBind reports a JSON binding error, naming the first failed field rule.
func failBind(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := fmt.Sprintf("%s is invalid (%s)", lowerFirst(fe.Field()), fe.Tag())
		switch fe.Tag() {
		case "required":
			msg = fmt.Sprintf("%s is required", lowerFirst(fe.Field()))
		case "min":
			msg = fmt.Sprintf("%s must be at least %s characters", lowerFirst(fe.Field()), fe.Param())
		case "email":
			msg = fmt.Sprintf("%s must be a valid email", lowerFirst(fe.Field()))
		}
		common.Fail(c, http.StatusBadRequest, 10002, msg)
		return
	}
	common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
