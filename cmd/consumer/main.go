package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"example.com/fitness/internal/config"
	"example.com/fitness/internal/consumer"
	"example.com/fitness/internal/gemini"
	persistence "example.com/fitness/internal/persistence/postgres"
	"example.com/fitness/internal/recommend"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	client := gemini.NewClient(gemini.Config{
		EndpointURL: cfg.GeminiAPIURL,
		APIKey:      cfg.GeminiAPIKey,
		Timeout:     cfg.GeminiTimeout,
	})
	generator := recommend.NewGenerator(client, recommend.GeneratorConfig{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		Multiplier:  cfg.RetryMultiplier,
		MaxDelay:    cfg.RetryMaxDelay,
	})

	repo := persistence.NewRecommendationRepository(pool)
	handler := consumer.NewRecommendationHandler(generator, repo)
	dlq := consumer.NewDLQWriter(pool)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}

	go func() {
		log.Printf("consumer metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	var wg sync.WaitGroup
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Each worker owns one reader in the shared group; a worker blocked in a
	// backoff wait stalls only its own partition assignment.
	for i := 0; i < cfg.ConsumerWorkers; i++ {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.KafkaBrokers,
			GroupID:         cfg.ConsumerGroupID,
			Topic:           cfg.ActivityTopic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})

		proc := consumer.NewProcessor(reader, handler, consumer.WithDeadLetterSink(dlq))

		wg.Add(1)
		go func(worker int, r *kafka.Reader) {
			defer wg.Done()
			defer r.Close()

			log.Printf("worker %d started (topic=%s, group=%s)", worker, cfg.ActivityTopic, cfg.ConsumerGroupID)
			if err := proc.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("worker %d stopped with error: %v", worker, err)
			}
		}(i, reader)
	}

	<-stop
	log.Println("consumer shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}

	wg.Wait()
}
