package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"marcha/payments-service/internal/account"
	"marcha/payments-service/internal/config"
	"marcha/payments-service/internal/gateway"
	"marcha/payments-service/internal/httpapi"
	"marcha/payments-service/internal/order"
	"marcha/payments-service/internal/reconcile"
	"marcha/payments-service/internal/storage"
	"marcha/payments-service/internal/websocket"
	"marcha/payments-service/pkg/messaging"

	"github.com/joho/godotenv"
)

type App struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.Store
	orders    *order.Service
	accounts  *account.Service
	wsHub     *websocket.Hub
	publisher messaging.Publisher
	outbox    *messaging.OutboxDispatcher
	httpSrv   *http.Server
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	store, err := storage.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	orders := order.NewService(store.Pool())
	accounts := account.NewService(store.Pool())
	wsHub := websocket.NewHub()

	signatureKey := ""
	if cfg.VerifySignature {
		signatureKey = cfg.MidtransServerKey
	}
	reconciler := reconcile.NewService(reconcile.NewPgStore(store.Pool()), wsHub, signatureKey, logger)

	gatewayClient := gateway.NewClient(cfg.MidtransServerKey, cfg.MidtransProduction)

	publisher, err := messaging.NewRabbitPublisher(cfg.RabbitURL, cfg.ReconciledExchange)
	if err != nil {
		store.Close()
		return nil, err
	}

	api := httpapi.NewServer(orders, accounts, reconciler, gatewayClient, cfg.AppRedirectURL, logger)
	wsHandler := websocket.NewHandler(wsHub, orders, logger)
	api.HandleFunc("GET /orders/{orderID}/ws", wsHandler.ServeWS)

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api,
	}

	outbox := messaging.NewOutboxDispatcher(store.Pool(), publisher, "reconciliation_outbox", cfg.OutboxInterval, cfg.OutboxBatch, logger)

	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		orders:    orders,
		accounts:  accounts,
		wsHub:     wsHub,
		publisher: publisher,
		outbox:    outbox,
		httpSrv:   httpSrv,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)

	a.outbox.Start(ctx)
	go a.wsHub.Run(ctx)

	go func() {
		a.logger.Info("payments http server listening", "addr", a.cfg.HTTPAddr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *App) Close(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.ShutdownGracePeriod)
	defer cancel()
	_ = a.httpSrv.Shutdown(shutdownCtx)
	a.publisher.Close()
	a.store.Close()
}

func Run() error {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer app.Close(ctx)

	return app.Run(ctx)
}
