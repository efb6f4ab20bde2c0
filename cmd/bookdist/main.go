package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ahinestrog/bookdist/internal/cart"
	"github.com/ahinestrog/bookdist/internal/catalog"
	"github.com/ahinestrog/bookdist/internal/config"
	"github.com/ahinestrog/bookdist/internal/customer"
	"github.com/ahinestrog/bookdist/internal/discount"
	"github.com/ahinestrog/bookdist/internal/events"
	"github.com/ahinestrog/bookdist/internal/grpcapi"
	"github.com/ahinestrog/bookdist/internal/httpapi"
	"github.com/ahinestrog/bookdist/internal/identity"
	"github.com/ahinestrog/bookdist/internal/logging"
	"github.com/ahinestrog/bookdist/internal/order"
	"github.com/ahinestrog/bookdist/internal/payment"
	"github.com/ahinestrog/bookdist/internal/store"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := config.Load()
	must(err)
	logging.Setup(cfg.App.Env)

	log.Info().
		Str("http", cfg.Server.HTTPAddr).
		Str("grpc", cfg.Server.GRPCAddr).
		Str("db", cfg.DB.Driver).
		Bool("rabbit", cfg.Rabbit.URL != "").
		Msg("starting bookdist")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB
	db, err := store.Open(ctx, cfg.DB.Driver, cfg.DB.Target())
	must(err)
	defer db.Close()

	// Rabbit (opcional)
	var pub events.Publisher = events.Nop{}
	if cfg.Rabbit.URL != "" {
		rabbit, err := events.NewRabbit(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
		must(err)
		defer rabbit.Close()
		pub = rabbit

		watcher := catalog.NewReorderWatcher(db)
		must(rabbit.Consume(ctx, cfg.Rabbit.ReorderQueue, events.RKOrderCreated, watcher.HandleOrderCreated))
		log.Info().Str("queue", cfg.Rabbit.ReorderQueue).Msg("reorder consumer started")
	}

	ident := identity.NewService(db, cfg.App.SessionTTL)
	svc := httpapi.Services{
		DB:        db,
		Identity:  ident,
		Catalog:   catalog.NewService(db, pub),
		Customers: customer.NewService(db),
		Payments:  payment.NewService(db),
		Discounts: discount.NewService(db),
		Cart:      cart.NewService(db),
		Orders: order.NewService(db, pub, order.Settings{
			DefaultCreditLimit: cfg.Pricing.DefaultCreditLimit,
			TaxRate:            cfg.Pricing.TaxRate,
		}),
	}

	if cfg.App.SeedOnStart {
		must(seed(ctx, svc))
	}

	// gRPC
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	must(err)
	grpcSrv := grpcapi.NewGRPCServer(svc.Orders, ident)
	go func() {
		log.Info().Str("addr", cfg.Server.GRPCAddr).Msg("gRPC listening")
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc serve")
			cancel()
		}
	}()

	// HTTP
	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           httpapi.NewHandler(svc, cfg.Server.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("HTTP listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http serve")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Warn().Msg("shutting down...")

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownGrace)
	defer done()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	grpcSrv.GracefulStop()
}

func must(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}
