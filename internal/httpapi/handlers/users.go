package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/relaychat/internal/auth"
	"github.com/suPer8Hu/relaychat/internal/common"
	"github.com/suPer8Hu/relaychat/internal/httpapi/middleware"
	"github.com/suPer8Hu/relaychat/internal/models"
	"gorm.io/gorm"
)

type signupReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"fullName" binding:"required"`
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	ctx := c.Request.Context()

	var cnt int64
	if err := h.DB.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&cnt).Error; err != nil {
		failErr(c, err)
		return
	}
	if cnt > 0 {
		common.Fail(c, http.StatusConflict, 40901, "user with this email already exists")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	user := models.User{
		Email:        email,
		Username:     strings.TrimSpace(req.FullName),
		PasswordHash: hash,
		MessageCount: h.Cfg.DefaultMessageQuota,
	}
	if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			common.Fail(c, http.StatusConflict, 40901, "user with this email already exists")
			return
		}
		failErr(c, err)
		return
	}
	log.Ctx(ctx).Info().Uint64("user_id", user.ID).Msg("user signed up")

	common.Created(c, gin.H{"user": user})
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err)
		return
	}

	var user models.User
	err := h.DB.WithContext(c.Request.Context()).
		Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).
		First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		failErr(c, err)
		return
	}
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		common.Fail(c, http.StatusUnauthorized, 40102, "invalid email or password")
		return
	}

	token, err := auth.SignJWT(user.ID, user.Email, h.Cfg.JWTSecret, h.Cfg.SessionTTL)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"token": token, "user": user})
}

func (h *Handler) Me(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "user not found")
			return
		}
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{
		"id":           user.ID,
		"email":        user.Email,
		"username":     user.Username,
		"messageCount": user.MessageCount,
	})
}
