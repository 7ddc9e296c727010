package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/relaychat/internal/ai"
	"github.com/suPer8Hu/relaychat/internal/common"
	"github.com/suPer8Hu/relaychat/internal/httpapi/middleware"
)

func userIDFromContext(c *gin.Context) (uint64, bool) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
	}
	return uid, ok
}

type createChatReq struct {
	Title   string `json:"title"`
	ModelID string `json:"modelId"`
}

func (h *Handler) CreateChat(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		return
	}
	var req createChatReq
	_ = c.ShouldBindJSON(&req) // allow empty body

	chat, err := h.ChatSvc.CreateChat(c.Request.Context(), uid, req.Title, req.ModelID)
	if err != nil {
		failErr(c, err)
		return
	}
	common.Created(c, gin.H{"chat": chat})
}

func (h *Handler) ListChats(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		return
	}
	chats, err := h.ChatSvc.ListChats(c.Request.Context(), uid)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"chats": chats})
}

func (h *Handler) DeleteChat(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		return
	}
	if err := h.ChatSvc.DeleteChat(c.Request.Context(), uid, c.Param("chatId")); err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"deleted": true})
}

type createMessageReq struct {
	Content string `json:"content" binding:"required"`
}

func (h *Handler) CreateMessage(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		return
	}
	var req createMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err)
		return
	}
	userMsg, aiMsg, err := h.ChatSvc.CreateTurn(c.Request.Context(), uid, c.Param("chatId"), req.Content)
	if err != nil {
		failErr(c, err)
		return
	}
	common.Created(c, gin.H{"userMessage": userMsg, "aiMessage": aiMsg})
}

func (h *Handler) ListMessages(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		return
	}
	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), uid, c.Param("chatId"))
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"messages": msgs})
}

func (h *Handler) ListModels(c *gin.Context) {
	common.OK(c, gin.H{"models": ai.Models(), "defaultModelId": ai.DefaultModelID})
}
