package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/closetline/marketplace/internal/broker"
	"github.com/closetline/marketplace/internal/config"
	"github.com/closetline/marketplace/internal/es"
	"github.com/closetline/marketplace/internal/handlers"
	"github.com/closetline/marketplace/internal/jobs"
	"github.com/closetline/marketplace/internal/logging"
	"github.com/closetline/marketplace/internal/notify"
	"github.com/closetline/marketplace/internal/ranking"
	"github.com/closetline/marketplace/internal/shipping"
	"github.com/closetline/marketplace/internal/status"
	httpserver "github.com/closetline/marketplace/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}

	prod := broker.NewProducer([]string{configuration.KAFKA_ADDRESS}, configuration.ORDER_TOPIC)

	mailer := &notify.SMTPMailer{
		Addr:     configuration.SMTP_ADDR,
		From:     configuration.SMTP_FROM,
		Username: configuration.SMTP_USER,
		Password: configuration.SMTP_PASSWORD,
	}
	notifier := &notify.EmailNotifier{DB: db, Mailer: mailer, Log: logger}

	rules := status.NewRules(configuration.ALLOW_DIRECT_DISPATCH)
	shippingSvc := &shipping.Service{
		DB:        db,
		Rules:     rules,
		Broadcast: prod,
		Notify:    notifier,
		Log:       logger,
	}

	deps := httpserver.Deps{
		DB:             db,
		OrderHandler:   &handlers.OrderHandler{DB: db, Shipping: shippingSvc, JWTSecret: []byte(configuration.JWT_SECRET)},
		SellerHandler:  &handlers.SellerHandler{Ranking: &ranking.Engine{DB: db}},
		ProductHandler: &handlers.ProductHandler{DB: db},
	}

	if configuration.ES_URL != "" {
		esClient, err := es.NewClient(configuration, logger)
		if err != nil {
			log.Fatal(err)
		}
		deps.SearchHandler = &handlers.SearchHandler{ES: esClient, Index: "product"}
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := logging.IntoContext(c.Request().Context(), logger)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})

	httpserver.Register(e, &deps)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	runner := &jobs.Runner{DB: db, Shipping: shippingSvc, Log: logger}
	go runner.Start(jobCtx, configuration.JOB_INTERVAL)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	cancelJobs()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
