package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/relaychat/internal/ai"
	"github.com/suPer8Hu/relaychat/internal/chat"
	"github.com/suPer8Hu/relaychat/internal/config"
	"github.com/suPer8Hu/relaychat/internal/db"
	"github.com/suPer8Hu/relaychat/internal/httpapi"
	"github.com/suPer8Hu/relaychat/internal/httpapi/handlers"
	"github.com/suPer8Hu/relaychat/internal/logging"
	"github.com/suPer8Hu/relaychat/internal/models"
	"github.com/suPer8Hu/relaychat/internal/search"
	"github.com/suPer8Hu/relaychat/internal/store/rabbitmq"
	"github.com/suPer8Hu/relaychat/internal/store/redisstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect db")
	}
	if err := db.Migrate(gdb, &models.User{}, &chat.Chat{}, &chat.Message{}); err != nil {
		log.Fatal().Err(err).Msg("migrate db")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var searcher search.Searcher
	if cfg.ExaAPIKey != "" {
		searcher = search.NewExaClient(cfg.ExaAPIKey, cfg.ExaEndpoint)
		if cfg.RedisAddr != "" {
			rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			defer rds.Close()
			if err := rds.Ping(ctx); err != nil {
				log.Warn().Err(err).Msg("redis unavailable, search results will not be cached")
			} else {
				searcher = search.NewCachedSearcher(searcher, rds, cfg.SearchCacheTTL)
			}
		}
	} else {
		log.Info().Msg("EXA_API_KEY not set, web search disabled")
	}

	var titleQueue chat.TitleEnqueuer
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatal().Err(err).Msg("rabbit publisher")
		}
		defer pub.Close()
		titleQueue = pub
	}

	reg := ai.NewDefaultRegistry(cfg.ProviderCredentials())
	h := handlers.NewHandler(gdb, cfg, reg, searcher, titleQueue)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
}
