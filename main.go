package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gitwatch/gitwatch/app/controllers"
	"github.com/gitwatch/gitwatch/app/repository"
	"github.com/gitwatch/gitwatch/internal/pkg/ai"
	"github.com/gitwatch/gitwatch/internal/pkg/cache"
	"github.com/gitwatch/gitwatch/internal/pkg/config"
	"github.com/gitwatch/gitwatch/internal/pkg/database"
	"github.com/gitwatch/gitwatch/internal/pkg/env"
	"github.com/gitwatch/gitwatch/internal/pkg/jobqueue"
	"github.com/gitwatch/gitwatch/internal/pkg/metrics"
	"github.com/gitwatch/gitwatch/internal/pkg/notify"
	"github.com/gitwatch/gitwatch/internal/pkg/report"
	"github.com/gitwatch/gitwatch/internal/pkg/router"
	"github.com/gitwatch/gitwatch/internal/pkg/scheduler"
	"github.com/gitwatch/gitwatch/internal/pkg/stream"
	"github.com/gitwatch/gitwatch/internal/pkg/webhook"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gitwatch",
		Short: "GitHub activity monitor, Discord notifier and AI reporter",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	checkModelsCmd := &cobra.Command{
		Use:   "check-models",
		Short: "Probe which Gemini models the configured API key can use",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckModels(cmd.Context())
		},
	}

	var tailURL string
	var tailKey string
	var tailEvents []string
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow the live event stream of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			env.SetupEnvFile()
			if tailKey == "" {
				tailKey = env.GetEnv("API_ACCESS_TOKEN", "")
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			err := stream.Tail(ctx, stream.TailConfig{
				ServerURL: tailURL,
				APIKey:    tailKey,
				Events:    tailEvents,
			}, newLogger())
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
	tailCmd.Flags().StringVar(&tailURL, "url", "ws://localhost:3000/webhook/stream", "stream endpoint to connect to")
	tailCmd.Flags().StringVar(&tailKey, "api-key", "", "API key (defaults to API_ACCESS_TOKEN)")
	tailCmd.Flags().StringSliceVar(&tailEvents, "events", nil, "event types to subscribe to (default: all)")

	rootCmd.AddCommand(serveCmd, checkModelsCmd, tailCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe() error {
	env.SetupEnvFile()
	log := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	database.SetupDatabase()
	repository.InitializeFactory(database.GetDB())
	metrics.RegisterAll()

	events := repository.GetGlobalFactory().GetEventRepository()
	notifier := notify.NewDiscord(cfg.DiscordWebhookURL, log)

	hub := stream.NewHub(log)
	go hub.Run()

	eventRouter := webhook.NewRouter(events, notifier, hub, log)
	queue := jobqueue.NewQueue(cache.GetClient(), eventRouter, cfg.QueueWorkers, log)
	queue.Start()
	defer queue.Stop()

	reports := report.NewService(events, ai.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel), notifier, log)
	sched := scheduler.New(reports.Run, log)
	sched.Start()
	defer sched.Stop()

	controller := controllers.NewWebhookController(events, queue.Enqueue, log)
	app := newApplication(controller, hub, log)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down")
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf("%s:%s", cfg.AppHost, cfg.AppPort)
	log.Infof("listening on %s", addr)
	return app.Listen(addr)
}

// newApplication builds the Fiber app with all routes installed.
func newApplication(controller *controllers.WebhookController, hub *stream.Hub, log *logrus.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "gitwatch",
		DisableStartupMessage: !env.IsDev(),
	})
	app.Use(recover.New(), fiberlogger.New())

	router.InstallRouter(app, router.NewWebhookRouter(controller, hub, log))
	return app
}

func runCheckModels(ctx context.Context) error {
	env.SetupEnvFile()
	apiKey := env.GetEnv("GEMINI_API_KEY", "")
	if apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is not set")
	}

	client := ai.NewClient(apiKey, "")
	for _, model := range ai.CandidateModels {
		fmt.Printf("Testing %q... ", model)
		if err := client.ProbeModel(ctx, model); err != nil {
			fmt.Printf("FAILED: %v\n", err)
			continue
		}
		fmt.Println("OK")
		fmt.Printf("\nSet GEMINI_MODEL=%s\n", model)
		return nil
	}
	return fmt.Errorf("no candidate model responded; check the API key and project settings")
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(env.GetEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
