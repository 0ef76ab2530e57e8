package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"soundsgood/internal/acquire"
	"soundsgood/internal/config"
	"soundsgood/internal/handlers"
	"soundsgood/internal/jobs"
	"soundsgood/internal/pipeline"
	"soundsgood/internal/separate"
	"soundsgood/internal/transcribe"
	"soundsgood/internal/version"
)

func main() {
	// Load .env if present.
	_ = godotenv.Load()

	settings := config.Load()

	manager := jobs.NewManager(settings.JobTTL)
	if settings.DemoDir != "" {
		if err := jobs.LoadDemo(manager, settings.DemoDir); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				log.Printf("Demo data not found in %s, skipping", settings.DemoDir)
			} else {
				log.Printf("Failed to load demo data: %v", err)
			}
		} else {
			log.Printf("Demo data loaded from %s", settings.DemoDir)
		}
	}

	sweeper := jobs.NewSweeper(manager, settings.CleanupInterval)
	sweeper.Start()

	transcriber, ready := buildTranscriber(settings)
	orchestrator := pipeline.New(
		manager,
		acquire.NewDownloader(settings.UploadMaxBytes()),
		separate.NewDemucs(settings.DemucsModel, settings.DemucsDevice),
		transcriber,
		acquire.NormalizeSource,
		settings.WorkDir,
	)

	h := handlers.NewProcessHandler(orchestrator, manager, settings.UploadMaxMB, ready)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: settings.CORSOrigins,
	}))

	e.POST("/api/process", h.Upload)
	e.POST("/api/process/url", h.SubmitURL)
	e.GET("/api/jobs/:id", h.GetJob)
	e.GET("/api/files/:job_id/:filename", h.GetFile)
	e.GET("/api/demo", h.GetDemo)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version.Version,
		})
	})

	go func() {
		log.Printf("Starting soundsgood v%s on port %s", version.Version, settings.Port)
		if err := e.Start(fmt.Sprintf(":%s", settings.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	sweeper.Stop()
	manager.Cleanup()
}

// buildTranscriber selects the transcription backend: the remote STT
// client when an API key is configured, otherwise the local sherpa-onnx
// recognizer when a model directory is. The second return value reports
// whether any backend is usable.
func buildTranscriber(settings *config.Settings) (pipeline.Transcriber, bool) {
	if settings.STTAPIKey != "" {
		return transcribe.NewClient(settings.STTAPIKey, settings.STTBaseURL), true
	}
	if settings.ASRModelDir != "" {
		recognizer, err := transcribe.NewRecognizer(settings.ASRModelDir)
		if err != nil {
			log.Fatalf("Failed to initialize local recognizer: %v", err)
		}
		return recognizer, true
	}
	log.Println("No STT_API_KEY or ASR_MODEL_DIR configured; submissions will be rejected")
	return transcribe.NewClient("", ""), false
}
