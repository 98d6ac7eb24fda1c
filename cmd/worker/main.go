// cmd/worker/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/mailmergehq/mailmerge-backend/internal/config"
	"github.com/mailmergehq/mailmerge-backend/internal/db"
	"github.com/mailmergehq/mailmerge-backend/internal/queue"
	"github.com/mailmergehq/mailmerge-backend/internal/repository"
	"github.com/mailmergehq/mailmerge-backend/internal/service"
)

// The worker consumes dispatch jobs from RabbitMQ and runs the send
// loop. On SIGINT/SIGTERM the context is cancelled so an in-flight run
// finalizes its campaign as paused before the process exits.
func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, relying on OS environment variables")
	}

	cfg := config.Load()
	if cfg.AMQPURL == "" {
		logrus.Fatal("AMQP_URL is required for the dispatch worker")
	}

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("database connection failed")
	}
	defer conn.Close()

	amqpQueue, err := queue.DialAMQP(cfg.AMQPURL)
	if err != nil {
		logrus.WithError(err).Fatal("queue connection failed")
	}
	defer amqpQueue.Close()

	campaignService := &service.CampaignService{
		CampaignRepo:  &repository.CampaignRepository{DB: conn},
		RecipientRepo: &repository.RecipientRepository{DB: conn},
		Queue:         amqpQueue,
		SendDelay:     cfg.SendDelay,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = amqpQueue.Subscribe(queue.TopicCampaignDispatch, func(payload []byte) error {
		return campaignService.RunDispatch(ctx, payload)
	})
	if err != nil {
		logrus.WithError(err).Fatal("failed to subscribe")
	}

	logrus.Info("worker running, waiting for dispatch jobs")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logrus.Info("shutting down")
	cancel()
}
