package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/catrixlabs/catrix-client/internal/config"
	"github.com/catrixlabs/catrix-client/internal/devserver"
	"github.com/catrixlabs/catrix-client/internal/logger"
	"github.com/catrixlabs/catrix-client/internal/model"
	"github.com/catrixlabs/catrix-client/internal/validator"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().Str("port", cfg.ServerPort).Msg("Starting CATrix dev server")

	validator.Setup()

	auth := devserver.NewAuth(cfg)
	store := devserver.NewStore()
	if err := seed(store, auth, cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed dev data")
	}

	handler := devserver.NewHandler(store, auth, log)
	router := devserver.NewRouter(cfg, auth, handler)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	log.Info().Str("email", cfg.SeedEmail).Msg("Dev server ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}
	log.Info().Msg("Server stopped")
}

// seed installs the demo account and a sample paper so the CLI works out of
// the box.
func seed(store *devserver.Store, auth *devserver.Auth, cfg *config.Config) error {
	hash, err := auth.HashPassword(cfg.SeedPassword)
	if err != nil {
		return err
	}
	store.AddUser(model.User{Email: cfg.SeedEmail, Name: "Demo Student"}, hash)

	store.AddTest(&model.Test{
		ID:         "sample-qa-01",
		Title:      "Quantitative Aptitude Mock 1",
		Duration:   30,
		TotalMarks: 9,
		Section:    "QA",
		Questions: []model.Question{
			{
				ID:           "q1",
				QuestionText: "What is 15% of 240?",
				Options: []model.Option{
					{Label: "0", Text: "32"},
					{Label: "1", Text: "36"},
					{Label: "2", Text: "38"},
					{Label: "3", Text: "42"},
				},
				CorrectAnswer: "1",
				Marks:         3,
				Difficulty:    model.DifficultyEasy,
				Section:       "QA",
			},
			{
				ID:           "q2",
				QuestionText: "A train covers 360 km in 4 hours. What is its average speed in km/h?",
				Options: []model.Option{
					{Label: "0", Text: "80"},
					{Label: "1", Text: "85"},
					{Label: "2", Text: "90"},
					{Label: "3", Text: "95"},
				},
				CorrectAnswer: "2",
				Marks:         3,
				Difficulty:    model.DifficultyMedium,
				Section:       "QA",
			},
			{
				ID:            "q3",
				QuestionText:  "Type the next number in the sequence: 2, 6, 12, 20, 30, ...",
				CorrectAnswer: "42",
				Marks:         3,
				Difficulty:    model.DifficultyMedium,
				Section:       "QA",
			},
		},
	})
	return nil
}
