package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/subhamasthu/sankalp-bot/app/controllers"
	"github.com/subhamasthu/sankalp-bot/app/repository"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/cache"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/chat"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/database"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/env"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/fsm"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/jobqueue"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/ledger"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/payments"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/receipt"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/router"
)

func main() {
	app := NewApplication()

	// Stop workers before the process dies so no job is left in the
	// processing list longer than necessary.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		jobqueue.GetManager().Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()

	sender := chat.NewGupshupClientFromEnv()
	links := payments.NewRazorpayClientFromEnv()
	machine := fsm.NewMachine(repos, sender, links)

	// Receipt archive is optional, jobs fall back to chat-only delivery.
	var archive *receipt.Client
	receiptCfg, err := receipt.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid receipt archive configuration: %v", err)
	}
	if receiptCfg.Enabled {
		archive, err = receipt.NewClient(receiptCfg)
		if err != nil {
			log.Fatalf("Failed to connect to receipt archive: %v", err)
		}
	}

	ledgerSvc := ledger.NewService(db)
	manager := jobqueue.InitManager(&jobqueue.Dependencies{
		Repos:   repos,
		Sender:  sender,
		Archive: archive,
	}, machine, ledgerSvc)
	manager.Start()

	paymentsSvc := payments.NewServiceFromEnv(db, jobqueue.NewEnqueuer(manager.GetQueue()))
	controllers.Setup(machine, paymentsSvc, ledgerSvc)

	app := fiber.New(fiber.Config{
		AppName:   "sankalp-bot",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
