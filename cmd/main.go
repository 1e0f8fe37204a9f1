package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peterhyland0/adaptive-learning-backend/internal/clients/gcp"
	"github.com/peterhyland0/adaptive-learning-backend/internal/db"
	"github.com/peterhyland0/adaptive-learning-backend/internal/handlers"
	"github.com/peterhyland0/adaptive-learning-backend/internal/logger"
	"github.com/peterhyland0/adaptive-learning-backend/internal/repos"
	"github.com/peterhyland0/adaptive-learning-backend/internal/server"
	"github.com/peterhyland0/adaptive-learning-backend/internal/services"
	"github.com/peterhyland0/adaptive-learning-backend/internal/sse"
	"github.com/peterhyland0/adaptive-learning-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	uploadRepo := repos.NewUploadRepo(thePG, log)
	moduleRepo := repos.NewModuleRepo(thePG, log)
	flashcardSetRepo := repos.NewFlashcardSetRepo(thePG, log)
	mindMapRepo := repos.NewMindMapRepo(thePG, log)
	podcastSessionRepo := repos.NewPodcastSessionRepo(thePG, log)
	quizSetRepo := repos.NewQuizSetRepo(thePG, log)
	pipelineRunRepo := repos.NewPipelineRunRepo(thePG, log)
	styleProfileRepo := repos.NewStyleProfileRepo(thePG, log)

	// SSE
	log.Info("Setting up SSE hub now...")
	sseHub := sse.NewSSEHub(log)

	// GCP clients
	log.Info("Setting up GCP clients from main...")
	bucketService, err := gcp.NewBucketService(log)
	if err != nil {
		log.Error("Could not init BucketService", "error", err)
		os.Exit(1)
	}
	defer bucketService.Close()
	visionClient, err := gcp.NewVision(log)
	if err != nil {
		log.Warn("Could not init Vision client; image uploads disabled", "error", err)
	}
	speechClient, err := gcp.NewSpeech(log)
	if err != nil {
		log.Warn("Could not init Speech client; audio uploads disabled", "error", err)
	}
	ttsClient, err := gcp.NewTextToSpeech(log)
	if err != nil {
		log.Error("Could not init TextToSpeech client", "error", err)
		os.Exit(1)
	}

	// Services
	log.Info("Setting up Services from main...")
	openaiClient, err := services.NewOpenAIClient(log)
	if err != nil {
		log.Error("Could not init OpenAIClient", "error", err)
		os.Exit(1)
	}

	// The classifier bundle is load-bearing: a manifest mismatch means this
	// build cannot score questionnaires correctly, so startup aborts.
	modelDir := utils.GetEnv("STYLE_MODEL_DIR", "./models/style-classifier", log)
	styleInference, modelVersion, err := services.NewHugotInference(log, modelDir)
	if err != nil {
		var mismatch *services.ModelArtifactMismatchError
		if errors.As(err, &mismatch) {
			log.Error("Classifier bundle rejected", "error", err)
		} else {
			log.Error("Could not init style inference", "error", err)
		}
		os.Exit(1)
	}
	defer styleInference.Close()

	classifierService := services.NewStyleClassifierService(log, styleInference, modelVersion, styleProfileRepo)
	extractionService := services.NewExtractionService(log, visionClient, speechClient)
	generatorService := services.NewContentGeneratorService(log, openaiClient)
	synthesizerService := services.NewAudioSynthesizerService(log, ttsClient, speechClient, bucketService)
	pipelineService := services.NewPipelineOrchestrator(log, services.PipelineDeps{
		DB:          thePG,
		Hub:         sseHub,
		Extraction:  extractionService,
		Generator:   generatorService,
		Synthesizer: synthesizerService,
		Bucket:      bucketService,
		Uploads:     uploadRepo,
		Modules:     moduleRepo,
		Flashcards:  flashcardSetRepo,
		MindMaps:    mindMapRepo,
		Podcasts:    podcastSessionRepo,
		Quizzes:     quizSetRepo,
		Runs:        pipelineRunRepo,
		Profiles:    styleProfileRepo,
	})

	// Handlers
	log.Info("Setting up handlers from main...")
	classifyHandler := handlers.NewClassifyHandler(log, classifierService)
	uploadHandler := handlers.NewUploadHandler(log, pipelineService)
	moduleHandler := handlers.NewModuleHandler(log, moduleRepo, flashcardSetRepo, mindMapRepo, podcastSessionRepo, quizSetRepo, pipelineRunRepo)
	sseHandler := handlers.NewSSEHandler(log, sseHub)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AllowOrigins:    server.SplitOrigins(utils.GetEnv("CORS_ALLOW_ORIGINS", "", log)),
		ClassifyHandler: classifyHandler,
		UploadHandler:   uploadHandler,
		ModuleHandler:   moduleHandler,
		SSEHandler:      sseHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("Server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Graceful shutdown failed", "error", err)
	}
}
