package main

import (
	"context"
	"log"

	"github.com/labstack/echo/v4"

	"github.com/confera/attendance/internal/config"
	"github.com/confera/attendance/internal/database"
	"github.com/confera/attendance/internal/handler"
	"github.com/confera/attendance/internal/payment"
	"github.com/confera/attendance/internal/queue"
	"github.com/confera/attendance/internal/router"
	"github.com/confera/attendance/internal/scheduler"
	"github.com/confera/attendance/internal/service"
	"github.com/confera/attendance/internal/store"
)

func main() {
	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	st := store.NewMySQL(db)
	payments := payment.New(cfg.Payment)
	publisher := queue.NewPublisher()
	svc := service.NewRegistrationService(st, payments, publisher)

	// Background consumer draining notification queues into logs/.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification-consumer stopped: %v", err)
		}
	}()

	// Reminder and waitlist sweeps, single-leader via Redis lease.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("scheduler: redis unavailable, sweeps run without a lease")
	}
	sched := scheduler.New(svc, rdb, cfg)
	sched.Start(context.Background())

	e := echo.New()
	h := handler.NewRegistrationHandler(svc)
	router.RegisterRoutes(e, h, cfg)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
