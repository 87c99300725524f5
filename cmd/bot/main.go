package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Makarios44/xuxu-AIBOT/internal/adapter/assistant"
	"github.com/Makarios44/xuxu-AIBOT/internal/adapter/authweb"
	"github.com/Makarios44/xuxu-AIBOT/internal/adapter/cache"
	"github.com/Makarios44/xuxu-AIBOT/internal/adapter/calendar"
	"github.com/Makarios44/xuxu-AIBOT/internal/adapter/channel"
	"github.com/Makarios44/xuxu-AIBOT/internal/adapter/oauth"
	"github.com/Makarios44/xuxu-AIBOT/internal/adapter/tool"
	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
	"github.com/Makarios44/xuxu-AIBOT/internal/infra/config"
	"github.com/Makarios44/xuxu-AIBOT/internal/infra/logger"
	"github.com/Makarios44/xuxu-AIBOT/internal/infra/middleware"
	"github.com/Makarios44/xuxu-AIBOT/internal/infra/tracer"
	"github.com/Makarios44/xuxu-AIBOT/internal/security"
	"github.com/Makarios44/xuxu-AIBOT/internal/store"
	"github.com/Makarios44/xuxu-AIBOT/internal/usecase"
)

// msgHandlerError is what the user sees when the orchestrator returns an
// error: the webhook already acked, so the reply is our only feedback path.
const msgHandlerError = "Desculpe, ocorreu um erro ao processar sua mensagem. Tente novamente."

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		case "sync-assistant":
			if err := runSyncAssistant(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "sync-assistant: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`xuxu - conversational assistant bot

USAGE:
    xuxu [COMMAND] [FLAGS]

COMMANDS:
    sync-assistant   Push the local tool manifest to the remote assistant
    (no command)     Run the bot

FLAGS:
    -h, --help       Show this help message
    --config PATH    Config file path (default: ./config.yaml)

CONFIGURATION:
    Config file: ./config.yaml
    Environment: OPENAI_API_KEY, OPENAI_ASSISTANT_ID, DATABASE_URL,
    MICROSOFT_APP_ID / MICROSOFT_APP_PASSWORD and friends override config.`)
}

func configPath(args []string) string {
	fs := flag.NewFlagSet("xuxu", flag.ContinueOnError)
	path := fs.String("config", "./config.yaml", "config file path")
	fs.Parse(args)
	return *path
}

func run() error {
	cfg, err := config.Load(configPath(os.Args[1:]))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer func() {
		shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		tracerShutdown(shutdownCtx)
	}()

	// Persistence: record store with at-rest token protection.
	var cipher security.TokenCipher = security.NopCipher{}
	if cfg.Security.TokenPassphrase != "" {
		cipher, err = security.NewAESTokenCipher(cfg.Security.TokenPassphrase)
		if err != nil {
			return fmt.Errorf("token cipher: %w", err)
		}
	} else {
		log.Warn("no token passphrase configured, OAuth tokens stored in plaintext")
	}

	db, err := store.Open(cfg.Database.URL, cipher, log)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer db.Close()

	// Thread cache: redis when configured, in-process map otherwise.
	var threadCache domain.ThreadCache
	if cfg.Cache.RedisURL != "" {
		threadCache, err = cache.NewRedisThreadCache(ctx, cfg.Cache.RedisURL, cfg.Cache.TTL, log)
		if err != nil {
			return fmt.Errorf("redis cache: %w", err)
		}
	} else {
		threadCache = cache.NewMemoryThreadCache()
	}

	// Credential plumbing.
	creds := db.Credentials()
	refresher := oauth.NewRefresher(cfg.OAuth, log)
	tokenSource := usecase.NewCredentialService(creds, refresher, log)

	// Assistant transport behind a circuit breaker.
	assistantClient := assistant.NewClient(cfg.Assistant, log)
	assistantAPI := assistant.NewBreakerClient(assistantClient, cfg.Assistant.Breaker, log)

	// Tools.
	registry, err := buildTools(tokenSource, log)
	if err != nil {
		return fmt.Errorf("tools: %w", err)
	}
	dispatcher := tool.NewDispatcher(registry, log)

	// Orchestration.
	threads := usecase.NewThreadRegistry(db.Threads(), threadCache, assistantAPI, log)
	history := usecase.NewHistoryLog(db.Messages(), log)
	orchestrator := usecase.NewOrchestrator(assistantAPI, threads, dispatcher,
		usecase.NewConversationLocker(), history, cfg.Assistant, log)

	// Background credential refresh.
	sweep := usecase.NewRefreshSweep(creds, tokenSource, cfg.Sweep, log)
	if err := sweep.Start(ctx); err != nil {
		return fmt.Errorf("refresh sweep: %w", err)
	}
	defer sweep.Stop()

	// OAuth web flow rides on the Teams webhook server.
	authHandler := authweb.NewHandler(cfg.OAuth, refresher, creds, log)

	channels, err := buildChannels(ctx, cfg, authHandler, log)
	if err != nil {
		return fmt.Errorf("channels: %w", err)
	}
	if len(channels) == 0 {
		return fmt.Errorf("no channels configured")
	}

	handler := func(sendFn func(context.Context, domain.OutboundMessage) error) domain.MessageHandler {
		return func(ctx context.Context, msg domain.InboundMessage) error {
			out, err := orchestrator.HandleMessage(ctx, msg)
			if err != nil {
				log.Error("message handling failed",
					"conversation_id", msg.ConversationID, "channel", msg.ChannelName, "error", err)
				return sendFn(ctx, domain.OutboundMessage{
					ConversationID: msg.ConversationID,
					Content:        msgHandlerError,
					IsError:        true,
					ReplyToID:      msg.ReplyToID,
					Metadata:       msg.Metadata,
				})
			}
			return sendFn(ctx, *out)
		}
	}

	log.Info("xuxu starting",
		"channels", len(channels),
		"database", cfg.Database.URL,
		"redis", cfg.Cache.RedisURL != "",
		"encryption", cfg.Security.TokenPassphrase != "",
		"sweep", cfg.Sweep.Enabled,
	)

	var wg sync.WaitGroup
	errCh := make(chan error, len(channels))
	for _, ch := range channels {
		wg.Add(1)
		go func(c domain.Channel) {
			defer wg.Done()
			if err := c.Start(ctx, handler(c.Send)); err != nil {
				errCh <- fmt.Errorf("channel %s: %w", c.Name(), err)
			}
		}(ch)
	}

	select {
	case err := <-errCh:
		cancel()
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	wg.Wait()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	for _, ch := range channels {
		if err := ch.Stop(stopCtx); err != nil {
			log.Error("channel stop error", "channel", ch.Name(), "error", err)
		}
	}
	return nil
}

// buildTools registers every dispatchable function with schema validation.
func buildTools(tokens domain.TokenSource, log *slog.Logger) (*tool.Registry, error) {
	google := calendar.NewGoogleClient(log)
	graph := calendar.NewMicrosoftClient(log)

	registry := tool.NewRegistry(log)
	for _, t := range []domain.Tool{
		tool.NewSummarizeTool(log),
		tool.NewGoogleListTool(tokens, google, log),
		tool.NewGoogleCreateTool(tokens, google, log),
		tool.NewMicrosoftListTool(tokens, graph, log),
		tool.NewMicrosoftCreateTool(tokens, graph, log),
		tool.NewUserSearchTool(tokens, graph, log),
	} {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func buildChannels(ctx context.Context, cfg *config.Config, authHandler *authweb.Handler, log *slog.Logger) ([]domain.Channel, error) {
	var channels []domain.Channel

	for _, cc := range cfg.Channels {
		switch cc.Type {
		case "teams":
			if cc.Teams == nil {
				return nil, fmt.Errorf("teams channel missing config")
			}
			opts := []channel.TeamsOption{
				channel.WithTeamsExtraRoutes(authHandler.Register),
				channel.WithTeamsMiddleware(middleware.SecurityHeaders),
				channel.WithTeamsMiddleware(middleware.RateLimit(ctx, middleware.RateLimitConfig{
					RequestsPerMin: cfg.Web.RateLimitPerMin,
					BurstSize:      cfg.Web.Burst,
					TrustedProxies: cfg.Web.TrustedProxies,
				})),
			}
			if cc.Teams.WebhookAddr != "" {
				opts = append(opts, channel.WithTeamsWebhookAddr(cc.Teams.WebhookAddr))
			}
			if cc.Teams.TenantID != "" {
				opts = append(opts, channel.WithTeamsTenantID(cc.Teams.TenantID))
			}
			if cc.Teams.MentionOnly {
				opts = append(opts, channel.WithTeamsMentionOnly(true))
			}
			channels = append(channels,
				channel.NewTeamsChannel(cc.Teams.AppID, cc.Teams.AppSecret, log, opts...))

		case "slack":
			if cc.Slack == nil {
				return nil, fmt.Errorf("slack channel missing config")
			}
			channels = append(channels,
				channel.NewSlackChannel(cc.Slack.BotToken, cc.Slack.AppToken, log))

		default:
			return nil, fmt.Errorf("unknown channel type %q", cc.Type)
		}
	}

	return channels, nil
}

// runSyncAssistant pushes the local tool manifest to the remote assistant.
func runSyncAssistant(args []string) error {
	cfg, err := config.Load(configPath(args))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	// Schemas only; the tools never execute here, so a nil token source
	// and stock HTTP clients are fine.
	registry, err := buildTools(nil, log)
	if err != nil {
		return fmt.Errorf("tools: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := assistant.NewClient(cfg.Assistant, log)
	if err := client.UpdateAssistantTools(ctx, registry.Schemas()); err != nil {
		return err
	}

	schemas := registry.Schemas()
	fmt.Printf("assistant %s updated with %d tools:\n", cfg.Assistant.AssistantID, len(schemas))
	for _, s := range schemas {
		fmt.Printf("  - %s\n", s.Name)
	}
	return nil
}
