package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/roofline/roofline-backend/internal/automation"
	"github.com/roofline/roofline-backend/internal/config"
	"github.com/roofline/roofline-backend/internal/db"
	"github.com/roofline/roofline-backend/internal/queue"
	"github.com/roofline/roofline-backend/internal/repository"
	"github.com/roofline/roofline-backend/internal/sender"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	cfg := config.Load()

	conn, err := db.Open(cfg)
	if err != nil {
		log.Fatal("failed to connect to DB: ", err)
	}
	defer conn.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	enrollmentRepo := &repository.EnrollmentRepository{DB: conn}
	executionRepo := &repository.ExecutionRepository{DB: conn}
	contactRepo := &repository.ContactRepository{DB: conn}
	projectRepo := &repository.ProjectRepository{DB: conn}
	activityRepo := &repository.ActivityRepository{DB: conn}

	events := automation.NewEventQueue(8)

	executor := &automation.Executor{
		Contacts:    contactRepo,
		Projects:    projectRepo,
		Enrollments: enrollmentRepo,
		Activity:    activityRepo,
		Email:       sender.NewHTTPEmailSender(cfg.EmailGatewayURL, cfg.EmailGatewayKey, cfg.EmailFrom),
		SMS:         sender.NewHTTPSMSSender(cfg.SMSGatewayURL, cfg.SMSGatewayKey, cfg.SMSFrom),
		Webhook:     sender.NewHTTPWebhookCaller(),
		Events:      events,
	}
	scheduler := &automation.Scheduler{
		Campaigns:   campaignRepo,
		Enrollments: enrollmentRepo,
		Executions:  executionRepo,
	}
	manager := &automation.EnrollmentManager{
		Campaigns:   campaignRepo,
		Enrollments: enrollmentRepo,
		Projects:    projectRepo,
		Executions:  executionRepo,
	}
	dispatcher := &automation.TriggerDispatcher{
		Campaigns:   campaignRepo,
		Enrollments: enrollmentRepo,
		Projects:    projectRepo,
		Manager:     manager,
	}
	engine := &automation.Engine{
		Campaigns:   campaignRepo,
		Enrollments: enrollmentRepo,
		Executions:  executionRepo,
		Contacts:    contactRepo,
		Executor:    executor,
		Scheduler:   scheduler,
		Dispatcher:  dispatcher,
		Events:      events,
		PollLimit:   cfg.PollLimit,
	}

	ctx := context.Background()
	engine.Start(ctx, cfg.PollInterval)
	defer engine.Stop()

	consumer, err := queue.NewConsumer(cfg.AMQPURL, cfg.PipelineQueue, dispatcher)
	if err != nil {
		log.Fatal("failed to connect to RabbitMQ: ", err)
	}
	defer consumer.Close()

	if err := consumer.Start(); err != nil {
		log.Fatal("failed to start consumer: ", err)
	}

	log.Println("worker running: polling every", cfg.PollInterval)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("shutting down")
}
