package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv" // Loads .env files in development
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/subscription-seating/internal/config"
	"github.com/iliyamo/subscription-seating/internal/database"
	"github.com/iliyamo/subscription-seating/internal/handler"
	"github.com/iliyamo/subscription-seating/internal/queue"
	"github.com/iliyamo/subscription-seating/internal/repository"
	"github.com/iliyamo/subscription-seating/internal/router"
	"github.com/iliyamo/subscription-seating/internal/seating"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil when Redis is unreachable; limiter and cache fail open

	ledger := repository.NewLedger(db)
	publisher := queue.NewPublisher(cfg.AMQPURL)
	engine := seating.NewEngine(ledger, publisher)
	engine.Retries = cfg.SeatCreationRetries

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAPI(e, router.Handlers{
		Auth:          handler.NewAuthHandler(repository.NewAccountRepo(db), cfg.JWTSecret, cfg.AccessTTLMin, cfg.BcryptCost),
		Admission:     handler.NewAdmissionHandler(engine),
		Subscriptions: handler.NewSubscriptionHandler(ledger.Subscriptions, ledger.Summaries),
		Seats:         handler.NewSeatHandler(ledger, engine),
	}, cfg.JWTSecret, rdb)

	// Consume seating events into the local audit log.
	go queue.StartEventsConsumer(cfg.AMQPURL)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
