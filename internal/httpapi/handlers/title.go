package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/relaychat/internal/chat"
	"github.com/suPer8Hu/relaychat/internal/common"
)

// GenerateTitle names the chat from its first user message. With
// ?async=true the work is queued and the call returns 202 at once.
func (h *Handler) GenerateTitle(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		return
	}
	chatID := c.Param("chatId")
	ctx := c.Request.Context()

	if c.Query("async") == "true" {
		if _, err := h.ChatSvc.GetChat(ctx, uid, chatID); err != nil {
			failErr(c, err)
			return
		}
		h.enqueueTitle(c, chat.TitleJob{JobID: common.NewULID(), ChatID: chatID, UserID: uid})
		return
	}

	updated, err := h.Titles.Generate(ctx, uid, chatID)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"chat": updated})
}

func (h *Handler) enqueueTitle(c *gin.Context, job chat.TitleJob) {
	ctx := c.Request.Context()
	if h.TitleQueue != nil {
		if err := h.TitleQueue.EnqueueTitle(ctx, job); err != nil {
			failErr(c, err)
			return
		}
	} else {
		// no broker configured: run it here, detached from the request
		bg := log.Ctx(ctx).WithContext(context.WithoutCancel(ctx))
		go func() {
			if _, err := h.Titles.Generate(bg, job.UserID, job.ChatID); err != nil {
				log.Ctx(bg).Warn().Err(err).Str("chat_id", job.ChatID).Msg("background title generation failed")
			}
		}()
	}
	common.Accepted(c, gin.H{"queued": true, "jobId": job.JobID})
}
