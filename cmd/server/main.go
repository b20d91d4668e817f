package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"casefinder-backend/app"
	"casefinder-backend/config"
	"casefinder-backend/handlers"
	"casefinder-backend/logging"
	"casefinder-backend/repository"
	"casefinder-backend/service"
	"casefinder-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

func main() {
	configPath := flag.String("config", os.Getenv("CASEFINDER_CONFIG"), "path to a YAML config file")
	flag.Parse()

	// Load .env from the working directory or the project root
	config.LoadEnvFile()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := logging.New("casefinder", cfg.Debug)
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// Corpus, embedder and index are built once, before serving
	ctx := context.Background()
	core, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to build retrieval index: %v", err)
	}
	defer core.Close()

	geminiClient, err := initGemini(ctx, cfg.Gemini.APIKey)
	if err != nil {
		log.Fatalf("Failed to initialize Gemini: %v", err)
	}
	defer geminiClient.Close()

	analysisService := service.NewAnalysisService(
		service.AnalysisWithReasoner(service.NewGeminiReasoner(geminiClient, cfg.Gemini.Model, *cfg.Gemini.Temperature, logger)),
		service.AnalysisWithLogger(logger),
	)

	queryOpts := []service.QueryServiceOption{
		service.QueryWithRetriever(core.Retriever),
		service.QueryWithAnalyzer(analysisService),
		service.QueryWithTopK(cfg.TopK),
		service.QueryWithLogger(logger),
	}
	if cfg.History.Enabled {
		queryOpts = append(queryOpts, service.QueryWithAnalysisStore(repository.NewAnalysisRepository(core.DB)))
		logger.Info("analysis history enabled")
	}
	queryService := service.NewQueryService(queryOpts...)

	var archive storage.Storage
	if cfg.Storage.ArchiveUploads {
		archive = core.Storage
	}
	queryHandler := handlers.NewQueryHandler(queryService, core.Retriever, archive, cfg.MaxUploadBytes, logger)
	router := handlers.NewRouter(queryHandler, cfg.CORSOrigins)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "graceful shutdown failed")
	}
	logger.Info("server stopped")
}

func initGemini(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY environment variable is required")
	}
	return genai.NewClient(ctx, option.WithAPIKey(apiKey))
}
