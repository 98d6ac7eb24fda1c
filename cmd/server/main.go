// cmd/server/main.go
package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/mailmergehq/mailmerge-backend/internal/config"
	"github.com/mailmergehq/mailmerge-backend/internal/controller"
	"github.com/mailmergehq/mailmerge-backend/internal/db"
	"github.com/mailmergehq/mailmerge-backend/internal/queue"
	"github.com/mailmergehq/mailmerge-backend/internal/repository"
	"github.com/mailmergehq/mailmerge-backend/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, relying on OS environment variables")
	}

	cfg := config.Load()

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("database connection failed")
	}
	defer conn.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	recipientRepo := &repository.RecipientRepository{DB: conn}

	campaignService := &service.CampaignService{
		CampaignRepo:  campaignRepo,
		RecipientRepo: recipientRepo,
		SendDelay:     cfg.SendDelay,
	}

	// With an AMQP broker configured, jobs are consumed by cmd/worker.
	// Without one, the server consumes its own queue in-process.
	if cfg.AMQPURL != "" {
		amqpQueue, err := queue.DialAMQP(cfg.AMQPURL)
		if err != nil {
			logrus.WithError(err).Fatal("queue connection failed")
		}
		defer amqpQueue.Close()
		campaignService.Queue = amqpQueue
	} else {
		memQueue := queue.NewInMemoryQueue()
		campaignService.Queue = memQueue
		memQueue.Subscribe(queue.TopicCampaignDispatch, func(payload []byte) error {
			return campaignService.RunDispatch(context.Background(), payload)
		})
	}

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
	}

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(controller.RequireAuth(cfg.APIToken))

		r.Post("/campaigns", campaignController.CreateCampaign)
		r.Get("/campaigns", campaignController.ListCampaigns)
		r.Get("/campaigns/{id}", campaignController.GetCampaign)
		r.Post("/campaigns/{id}/launch", campaignController.Launch)
		r.Post("/campaigns/{id}/preview", campaignController.Preview)
		r.Post("/test-send", campaignController.TestSend)
	})

	logrus.WithField("addr", cfg.Addr).Info("server running")
	logrus.Fatal(http.ListenAndServe(cfg.Addr, r))
}
