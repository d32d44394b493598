package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"studypack/internal/api"
	"studypack/internal/config"
	"studypack/internal/db"
	"studypack/internal/extract"
	"studypack/internal/llm"
	"studypack/internal/services"
	"studypack/internal/srs"
)

func main() {
	cfg := config.Load()

	database, err := db.Open(cfg.Database)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	strategy, err := srs.ParseStrategy(cfg.Scheduler)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if cfg.OpenAIKey == "" {
		log.Println("warning: OPENAI_API_KEY not set, generation endpoints will be unavailable")
	}
	client := llm.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIEndpoint)

	extractor := extract.NewExtractor(nil)
	store := services.NewPackStore(database)
	quiz := services.NewQuizGenerator(client, cfg.GenerationTimeout)
	packs := services.NewPackGenerator(client, quiz, cfg.GenerationTimeout)
	tutor := services.NewTutor(client, cfg.GenerationTimeout)
	reviews := services.NewReviewService(store, strategy, client, cfg.GenerationTimeout)

	server := api.NewServer(extractor, packs, quiz, tutor, reviews, store)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	log.Printf("studypack server listening on :%s (scheduler=%s, model=%s)", port, strategy, cfg.OpenAIModel)
	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
