// Guildhall orchestrator server — provides the HTTP API, drives plan
// execution, and streams task events over WebSocket.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/guildworks/guildhall/pkg/agent"
	"github.com/guildworks/guildhall/pkg/agent/prompt"
	"github.com/guildworks/guildhall/pkg/api"
	"github.com/guildworks/guildhall/pkg/config"
	"github.com/guildworks/guildhall/pkg/cost"
	"github.com/guildworks/guildhall/pkg/events"
	"github.com/guildworks/guildhall/pkg/executor"
	"github.com/guildworks/guildhall/pkg/llm"
	"github.com/guildworks/guildhall/pkg/llm/providers/anthropic"
	"github.com/guildworks/guildhall/pkg/llm/providers/openaichat"
	"github.com/guildworks/guildhall/pkg/notify"
	"github.com/guildworks/guildhall/pkg/services"
	"github.com/guildworks/guildhall/pkg/version"
	"github.com/guildworks/guildhall/pkg/workflow"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// setupLogging configures the default slog handler from LOG_LEVEL and
// LOG_FORMAT ("json" or "text").
func setupLogging() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// buildProviderClients constructs one adapter per configured provider.
func buildProviderClients(registry *config.ProviderRegistry) []llm.ProviderClient {
	var clients []llm.ProviderClient
	for name, pc := range registry.GetAll() {
		apiKey := ""
		if pc.APIKeyEnv != "" {
			apiKey = os.Getenv(pc.APIKeyEnv)
		}

		switch pc.Kind {
		case config.ProviderKindAnthropic:
			clients = append(clients, anthropic.New(anthropic.Options{
				Name:    name,
				APIKey:  apiKey,
				BaseURL: pc.BaseURL,
			}))
		default:
			clients = append(clients, openaichat.New(openaichat.Options{
				Name:    name,
				BaseURL: pc.BaseURL,
				APIKey:  apiKey,
			}))
		}
	}
	return clients
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("GUILDHALL_CONFIG_DIR", "./config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env from the config directory before logging setup so
	// LOG_LEVEL/LOG_FORMAT from the file take effect.
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Debug("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	}
	setupLogging()

	host := getEnv("HOST", "0.0.0.0")
	port := getEnv("PORT", "8080")

	slog.Info("Starting guildhall",
		"version", version.Full(),
		"host", host,
		"port", port,
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Configuration: built-in catalog merged with user YAML.
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Cost tracking.
	pricing := cost.NewPricingTable(cfg.Pricing)
	tracker := cost.NewTracker(pricing, cfg.Limits.MaxCostEntries)

	// 3. Provider clients and the fallback chain.
	clients := buildProviderClients(cfg.ProviderRegistry)
	chain := llm.NewFallbackChain(llm.NewClientRegistry(clients...))
	slog.Info("Provider clients initialized", "count", len(clients))

	// 4. Dispatcher over the catalog.
	prompts := prompt.NewBuilder(cfg.Limits.ExampleMaxLen)
	dispatcher := agent.NewDispatcher(cfg.AgentRegistry, cfg.ProviderRegistry, chain, tracker, prompts)

	// 5. Plan store, executor, active-plan registry.
	store := workflow.NewStore(cfg.Limits.MaxStoredPlans)
	exec := executor.New(store)
	planRegistry := executor.NewRegistry()

	// 6. Services.
	agentService := services.NewAgentService(cfg, dispatcher, tracker)
	workflowService := services.NewWorkflowService(cfg.DefaultAgent(), store, exec, planRegistry, dispatcher, pricing)
	costService := services.NewCostService(tracker)

	// 7. Streaming surface: WebSocket connections run tasks through the
	// same dispatch path as the REST API.
	runner := func(ctx context.Context, agentID, task string, taskContext map[string]any, sink func(string)) (any, error) {
		return agentService.ExecuteStreaming(ctx, services.ExecuteInput{
			AgentID: agentID,
			Task:    task,
			Context: taskContext,
		}, sink)
	}
	connManager := events.NewConnectionManager(runner, 0)
	workflowService.SetBroadcaster(connManager)

	// 8. Optional Slack notifications.
	if cfg.Slack.IsEnabled() {
		tokenEnv := cfg.Slack.TokenEnv
		if tokenEnv == "" {
			tokenEnv = "SLACK_BOT_TOKEN"
		}
		notifier := notify.New(notify.Config{
			Token:   os.Getenv(tokenEnv),
			Channel: cfg.Slack.Channel,
		})
		if notifier != nil {
			workflowService.SetNotifier(notifier)
			slog.Info("Slack notifications enabled", "channel", cfg.Slack.Channel)
		} else {
			slog.Warn("Slack notifications configured but token is missing", "token_env", tokenEnv)
		}
	}

	// 9. HTTP server.
	server := api.NewServer(cfg, agentService, workflowService, costService, connManager, planRegistry)

	errCh := make(chan error, 1)
	go func() {
		addr := host + ":" + port
		slog.Info("HTTP server listening", "addr", addr)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	stats := cfg.Stats()
	slog.Info("Guildhall started successfully",
		"agents", stats.Agents,
		"providers", stats.Providers)

	// 10. Wait for shutdown signal or server error.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 11. Graceful shutdown: drain HTTP, let in-flight plans observe
	// cancellation through their request contexts.
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
