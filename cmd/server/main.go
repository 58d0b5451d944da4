package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/udv-group/stand-control-bot/internal/config"
	"github.com/udv-group/stand-control-bot/internal/database"
	"github.com/udv-group/stand-control-bot/internal/handler"
	"github.com/udv-group/stand-control-bot/internal/queue"
	"github.com/udv-group/stand-control-bot/internal/registry"
	"github.com/udv-group/stand-control-bot/internal/router"
	"github.com/udv-group/stand-control-bot/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	store := registry.New(db)
	hostsSvc := service.NewHostsService(store, cfg.DefaultLeaseLimit)
	groupsSvc := service.NewGroupsService(store)
	usersSvc := service.NewUsersService(store)

	// Without a broker the notifier formats messages but drops them,
	// which keeps lease reclamation fully functional.
	var sender service.MessageSender = service.DisabledSender{}
	if cfg.AmqpURL != "" {
		sender = queue.NewAmqpSender(cfg.AmqpURL)
	}
	notifier := service.NewNotifier(store, sender)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timer := service.NewReleaseTimer(store, notifier, cfg.ReleaseInterval, cfg.WarnWindow)
	go timer.Run(ctx)

	if cfg.AmqpURL != "" {
		go func() {
			if err := queue.StartNotifyConsumer(cfg.AmqpURL); err != nil {
				log.Printf("notify-consumer: %v", err)
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e)
	router.RegisterAPI(e,
		handler.NewHostsHandler(hostsSvc),
		handler.NewGroupsHandler(groupsSvc),
		handler.NewUsersHandler(usersSvc),
		cfg.JWTSecret,
		config.LoadRateLimitConfig(),
		config.NewRedisClient(),
	)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
