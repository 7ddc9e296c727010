package handlers

import (
	"github.com/suPer8Hu/relaychat/internal/ai"
	"github.com/suPer8Hu/relaychat/internal/chat"
	"github.com/suPer8Hu/relaychat/internal/config"
	"github.com/suPer8Hu/relaychat/internal/quota"
	"github.com/suPer8Hu/relaychat/internal/search"
	"gorm.io/gorm"
)

type Handler struct {
	DB         *gorm.DB
	Cfg        config.Config
	Quota      *quota.Ledger
	ChatSvc    *chat.Service
	Relay      *chat.Relay
	Titles     *chat.TitleService
	TitleQueue chat.TitleEnqueuer
}

// NewHandler wires the chat services over db. searcher and titleQueue may be
// nil; without a queue async titles run in-process.
func NewHandler(db *gorm.DB, cfg config.Config, reg *ai.Registry, searcher search.Searcher, titleQueue chat.TitleEnqueuer) *Handler {
	repo := chat.NewRepo(db)
	ledger := quota.NewLedger(db)
	assembler := chat.NewAssembler(repo, searcher, cfg.ChatContextWindowSize)
	return &Handler{
		DB:         db,
		Cfg:        cfg,
		Quota:      ledger,
		ChatSvc:    chat.NewService(repo, ledger),
		Relay:      chat.NewRelay(repo, ledger, reg, assembler),
		Titles:     chat.NewTitleService(repo, reg, cfg.TitleModel),
		TitleQueue: titleQueue,
	}
}
