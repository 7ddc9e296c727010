package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/relaychat/internal/ai"
	"github.com/suPer8Hu/relaychat/internal/chat"
	"github.com/suPer8Hu/relaychat/internal/config"
	"github.com/suPer8Hu/relaychat/internal/db"
	"github.com/suPer8Hu/relaychat/internal/logging"
	"github.com/suPer8Hu/relaychat/internal/store/rabbitmq"
)

const maxAttempts = 3

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if cfg.RabbitURL == "" {
		log.Fatal().Msg("RABBIT_URL is required for the worker")
	}

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect db")
	}
	reg := ai.NewDefaultRegistry(cfg.ProviderCredentials())
	titles := chat.NewTitleService(chat.NewRepo(gdb), reg, cfg.TitleModel)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit dial")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit channel")
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatal().Err(err).Msg("declare queues")
	}

	//  strict concurrency control
	concurrency := cfg.WorkerConcurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatal().Err(err).Msg("qos")
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("consume")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("queue", cfg.RabbitQueue).Int("concurrency", concurrency).Msg("worker started")

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)
	// amqp channels are not safe for concurrent publishing
	var pubMu sync.Mutex

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			logger := log.With().Int("worker", workerID).Logger()
			for d := range jobs {
				job, attempt, err := rabbitmq.DecodeTitleJob(d)
				if err != nil {
					logger.Error().Err(err).Msg("bad message")
					_ = d.Nack(false, false)
					continue
				}
				jl := logger.With().Str("job_id", job.JobID).Str("chat_id", job.ChatID).Int("attempt", attempt).Logger()

				start := time.Now()
				err = handleTitleJob(jl.WithContext(ctx), titles, job)
				switch {
				case err == nil:
					jl.Info().Dur("cost", time.Since(start)).Msg("title job done")
					if err := d.Ack(false); err != nil {
						jl.Error().Err(err).Msg("ack failed")
					}
				case permanent(err) || attempt+1 >= maxAttempts:
					jl.Error().Err(err).Msg("title job failed, dead-lettering")
					_ = d.Nack(false, false)
				default:
					jl.Warn().Err(err).Msg("title job failed, retrying")
					pubMu.Lock()
					rerr := rabbitmq.Retry(ctx, ch, cfg.RabbitQueue, job, attempt+1)
					pubMu.Unlock()
					if rerr != nil {
						jl.Error().Err(rerr).Msg("requeue failed")
						_ = d.Nack(false, false)
						continue
					}
					_ = d.Ack(false)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Warn().Msg("delivery channel closed")
				close(jobs)
				wg.Wait()
				return
			}
			jobs <- d
		}
	}
}

func handleTitleJob(ctx context.Context, titles *chat.TitleService, job chat.TitleJob) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	_, err := titles.Generate(ctx, job.UserID, job.ChatID)
	return err
}

// permanent reports errors a retry cannot fix.
func permanent(err error) bool {
	return errors.Is(err, chat.ErrChatNotFound) ||
		errors.Is(err, chat.ErrNoUserMessage) ||
		errors.Is(err, chat.ErrUnauthenticated)
}
