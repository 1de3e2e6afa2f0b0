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

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"shipdecl/internal/classifier"
	"shipdecl/internal/config"
	"shipdecl/internal/handler"
	"shipdecl/internal/ledger"
	"shipdecl/internal/repository/postgres"
	"shipdecl/internal/router"
	"shipdecl/internal/validator"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// The database only backs the audit sink; readiness reports it as disabled when off.
	var db *sqlx.DB
	if cfg.DB.Enabled {
		db, err = postgres.NewDB(&cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
	}

	cls := classifier.New()
	if cfg.Classifier.RulesFile != "" {
		if err := cls.LoadRulesFile(cfg.Classifier.RulesFile); err != nil {
			return fmt.Errorf("failed to load classifier rules: %w", err)
		}
	}

	// Initialize handlers
	healthH := handler.NewHealthHandler(db)
	classifyH := handler.NewClassifyHandler(cls)
	ledgerH := handler.NewLedgerHandler(
		ledger.NewParser(cfg.Pipeline.CountryCodeMap),
		validator.NewEngine(validator.Options{
			KnownBrands:     cfg.Pipeline.KnownBrands,
			ValidCurrencies: cfg.Pipeline.ValidCurrencies,
		}),
	)

	// Setup router
	r := router.Setup(router.Options{AllowedOrigins: cfg.Server.AllowedOrigins}, healthH, classifyH, ledgerH)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
