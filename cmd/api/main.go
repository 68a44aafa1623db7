package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/qaderichat/backend/internal/config"
	"github.com/qaderichat/backend/internal/handler"
	chatHandler "github.com/qaderichat/backend/internal/handler/chat"
	"github.com/qaderichat/backend/internal/logger"
	"github.com/qaderichat/backend/internal/metrics"
	"github.com/qaderichat/backend/internal/model/chat"
	"github.com/qaderichat/backend/internal/service/ai"
	chatService "github.com/qaderichat/backend/internal/service/chat"
	"github.com/qaderichat/backend/internal/storage/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.Setup(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file loaded, using process environment only")
	}

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Storage.Path).Msg("failed to open session store")
	}
	defer store.Close()

	provider, err := ai.New(cfg.AI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize AI provider")
	}
	if provider.Demo() {
		log.Warn().Str("provider", string(provider.Kind())).Msg("no API key configured, answering with demo replies")
	} else {
		log.Info().Str("provider", string(provider.Kind())).Str("model", provider.Model()).Msg("AI provider initialized")
	}

	m := metrics.New()
	chatSvc := chatService.NewService(store, provider, chatService.Config{
		SystemPrompt: cfg.AI.SystemPrompt,
		HistoryLimit: cfg.Chat.HistoryLimit,
	}, m)

	router := handler.NewRouter(handler.RouterConfig{
		ChatService: chatSvc,
		Diagnostics: chatHandler.Diagnostics{
			Provider:        provider.Kind(),
			Model:           provider.Model(),
			Demo:            provider.Demo(),
			HasOpenAIKey:    config.UsableKey(cfg.AI.OpenAIKey),
			HasAnthropicKey: config.UsableKey(cfg.AI.AnthropicKey),
			Debug:           cfg.Debug,
		},
		Metrics:            m,
		Logger:             appLogger,
		CookieSecure:       cfg.Server.CookieSecure,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
	})

	startServer(ctx, cfg.Server, router, appLogger)
}

func openStore(ctx context.Context, cfg config.StorageConfig) (chat.Store, error) {
	if cfg.Path == sqlite.MemoryPath {
		log.Warn().Msg("using in-memory session store, history is lost on restart")
		return chat.NewMemoryStore(), nil
	}
	store, err := sqlite.Open(ctx, cfg.Path)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, appLogger zerolog.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          newStdLogger(appLogger),
	}

	log.Info().Str("addr", addr).Msg("QaderiChat backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("server stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
