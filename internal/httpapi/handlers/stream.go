package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/relaychat/internal/chat"
)

type streamReq struct {
	ModelID   string `json:"modelId"`
	WebSearch bool   `json:"webSearch"`
}

// ginSink writes each delta as a raw chunk and flushes it straight away.
type ginSink struct {
	c *gin.Context
}

func (s ginSink) WriteDelta(delta string) error {
	if err := s.c.Request.Context().Err(); err != nil {
		return err
	}
	if _, err := s.c.Writer.WriteString(delta); err != nil {
		return err
	}
	s.c.Writer.Flush()
	return nil
}

// StreamMessage fills the model placeholder :messageId with a streamed reply.
// Errors before the first byte are ordinary JSON errors; once streaming has
// started a failure aborts the connection so the client never mistakes a cut
// reply for a finished one.
func (h *Handler) StreamMessage(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		return
	}
	var req streamReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
	}

	ctx := c.Request.Context()
	turn, err := h.Relay.Open(ctx, chat.TurnRequest{
		UserID:    uid,
		ChatID:    c.Param("chatId"),
		MessageID: c.Param("messageId"),
		ModelID:   req.ModelID,
		WebSearch: req.WebSearch,
	})
	if err != nil {
		failErr(c, err)
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx
	c.Header("X-Model-Id", turn.Model.ID)
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	if err := h.Relay.Forward(ctx, turn, ginSink{c: c}); err != nil {
		if errors.Is(err, chat.ErrClientGone) {
			return
		}
		log.Ctx(ctx).Error().Err(err).Str("state", turn.State.String()).Msg("stream aborted")
		panic(http.ErrAbortHandler)
	}
}
