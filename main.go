package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/RanjanPM/potato-disease-classification/internal/config"
	"github.com/RanjanPM/potato-disease-classification/internal/handlers"
	"github.com/RanjanPM/potato-disease-classification/internal/logging"
	"github.com/RanjanPM/potato-disease-classification/internal/predict"
	"github.com/RanjanPM/potato-disease-classification/internal/session"
	"github.com/RanjanPM/potato-disease-classification/internal/upload"
)

const sessionSweepInterval = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.SessionSecret == "dev-secret" {
		logger.Warn("SESSION_SECRET not set, using development secret")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	client := predict.NewClient(predict.ClientOpts{
		BaseURL: cfg.PredictAPIURL,
		Timeout: upload.SubmitTimeout,
		Logger:  logger,
	})
	router, store := newRouter(cfg, client, logger)
	go store.Run(ctx, sessionSweepInterval)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("classifier client listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("predict_api_url", client.BaseURL()),
		zap.Int("max_sessions", cfg.MaxSessions),
	)
	if err := serveHTTPServer(server, cfg.ShutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newRouter(cfg *config.Config, predictor predict.Client, logger *zap.Logger) (*gin.Engine, *session.Store) {
	store := session.NewStore(func(l upload.Listener) *upload.Controller {
		return upload.NewController(upload.Options{
			Predictor:  predictor,
			Listener:   l,
			ServiceURL: cfg.PredictAPIURL,
			Logger:     logger,
		})
	}, session.StoreOpts{TTL: cfg.SessionTTL, MaxSessions: cfg.MaxSessions, Logger: logger})

	r := gin.New()
	r.Use(gin.Recovery())
	handlers.RegisterRoutes(r, session.Middleware(store, session.CookieOpts{
		Secret: cfg.SessionSecret,
		TTL:    cfg.SessionTTL,
		Secure: cfg.SessionCookieSecure,
	}, logger), logger)
	return r, store
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	sigCh := signalCh
	if sigCh == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigCh = ch
	}

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
