/**
 * @description
 * This is the main entry point for the payments service. It loads configuration,
 * connects to PostgreSQL, runs migrations, wires the aggregator and payments
 * network clients into the core service, starts the outbox dispatcher and
 * serves the HTTP API until a termination signal arrives.
 *
 * @dependencies
 * - pgxpool for the database, godotenv for local config, the provider clients
 *   under pkg/ and the service's internal packages.
 */
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/zedx/payments-service/internal/api"
	"github.com/zedx/payments-service/internal/app"
	"github.com/zedx/payments-service/internal/config"
	"github.com/zedx/payments-service/internal/store"
	"github.com/zedx/payments-service/pkg/dwollaclient"
	"github.com/zedx/payments-service/pkg/plaidclient"
	"github.com/zedx/payments-service/pkg/rabbitmq"
	"github.com/zedx/payments-service/pkg/vault"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=main msg=\"no .env file found, using environment variables\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=main msg=\"cannot load config\" err=%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrations {
		if err := store.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
			log.Fatalf("level=fatal component=main msg=\"migrations failed\" err=%v", err)
		}
		log.Println("level=info component=main msg=\"migrations applied\"")
	}

	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=main msg=\"unable to parse database URL\" err=%v", err)
	}
	dbConfig.MaxConns = 20
	dbConfig.MaxConnLifetime = 30 * time.Minute
	dbConfig.MaxConnIdleTime = 5 * time.Minute

	dbpool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		log.Fatalf("level=fatal component=main msg=\"unable to connect to database\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=main msg=\"database connection established\"")

	ssnVault, err := vault.New([]byte(cfg.SSNEncryptionKey))
	if err != nil {
		log.Fatalf("level=fatal component=main msg=\"invalid SSN_ENCRYPTION_KEY\" err=%v", err)
	}

	repo := store.NewPostgresRepository(dbpool, cfg.EventsExchange)
	plaid := plaidclient.NewClient(plaidclient.BaseURLForEnv(cfg.PlaidEnv), cfg.PlaidClientID, cfg.PlaidSecret)
	dwolla := dwollaclient.NewClient(dwollaclient.BaseURLForEnv(cfg.DwollaEnv), cfg.DwollaKey, cfg.DwollaSecret)

	service := app.NewService(repo, plaid, dwolla, ssnVault, app.Options{
		ClientName:                        cfg.PlaidClientName,
		ExchangePartnerName:               cfg.DwollaExchangePartner,
		PaymentDestinationFundingSourceID: cfg.PaymentDestinationFundingSourceID,
	})
	authProvider := app.NewAuthProvider(repo, cfg.JWTSecret, cfg.JWTTTL(), cfg.DefaultCreditScore)

	if cfg.RabbitMQURL == "" {
		log.Println("level=warn component=main msg=\"RABBITMQ_URL not set; events will be logged and dropped\"")
	} else if _, err := rabbitmq.SanitizeAMQPURL(cfg.RabbitMQURL); err != nil {
		log.Fatalf("level=fatal component=main msg=\"invalid RABBITMQ_URL\" err=%v", err)
	}
	dispatcher := app.NewOutboxDispatcher(repo, cfg.RabbitMQURL)
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		dispatcher.Run(ctx)
	}()

	handlers := api.NewHandlers(service, authProvider)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           api.NewRouter(handlers, authProvider, cfg.AllowedOrigins()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("level=info component=main msg=\"starting HTTP server\" port=%s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=main msg=\"could not start server\" err=%v", err)
		}
	}()

	<-ctx.Done()
	log.Println("level=info component=main msg=\"shutting down payments-service\"")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("level=error component=main msg=\"server shutdown failed\" err=%v", err)
	}
	<-dispatcherDone

	log.Println("level=info component=main msg=\"server gracefully stopped\"")
}
