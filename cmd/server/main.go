package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/roofline/roofline-backend/internal/automation"
	"github.com/roofline/roofline-backend/internal/config"
	"github.com/roofline/roofline-backend/internal/db"
	"github.com/roofline/roofline-backend/internal/handler"
	"github.com/roofline/roofline-backend/internal/repository"
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
	projectRepo := &repository.ProjectRepository{DB: conn}

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

	campaignHandler := &handler.CampaignHandler{
		Campaigns:   campaignRepo,
		Enrollments: enrollmentRepo,
	}
	enrollmentHandler := &handler.EnrollmentHandler{
		Enrollments: enrollmentRepo,
		Executions:  executionRepo,
		Manager:     manager,
		Dispatcher:  dispatcher,
	}

	r := chi.NewRouter()

	// Campaign routes
	r.Post("/campaigns", campaignHandler.CreateCampaignHandler)
	r.Get("/campaigns", campaignHandler.ListCampaignsHandler)
	r.Get("/campaigns/{id}", campaignHandler.GetCampaignHandler)
	r.Patch("/campaigns/{id}/status", campaignHandler.UpdateCampaignStatusHandler)
	r.Post("/campaigns/{id}/enroll", enrollmentHandler.EnrollHandler)

	// Enrollment routes
	r.Post("/enrollments/{id}/pause", enrollmentHandler.PauseHandler)
	r.Post("/enrollments/{id}/resume", enrollmentHandler.ResumeHandler)

	// Event ingestion + operator views
	r.Post("/events/stage-change", enrollmentHandler.StageChangeHandler)
	r.Get("/executions", enrollmentHandler.ListExecutionsHandler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		status := "ok"
		code := http.StatusOK
		if err := conn.Ping(); err != nil {
			status = "db unreachable"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})

	log.Println("server running on", cfg.HTTPAddr)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
