package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/graphcs/flexpay/internal/config"
	"github.com/graphcs/flexpay/internal/handlers"
	"github.com/graphcs/flexpay/internal/model"
	"github.com/graphcs/flexpay/internal/paypal"
	"github.com/graphcs/flexpay/internal/repository"
	"github.com/graphcs/flexpay/internal/services"
	xhttp "github.com/graphcs/flexpay/pkg/http"
	"github.com/graphcs/flexpay/pkg/logger"
	"github.com/graphcs/flexpay/pkg/pg"
	"github.com/graphcs/flexpay/pkg/prom"
	"github.com/graphcs/flexpay/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 30))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	if config.Get().AppDebugMetricsAddr != "" {
		go func() {
			prom.ListenAndServer(config.Get().AppDebugMetricsAddr, "/metrics")
		}()
	}

	paypalClient := paypal.NewClient(&paypal.Config{
		SandboxBaseURL: config.Get().PayPalSandboxBaseURL,
		LiveBaseURL:    config.Get().PayPalLiveBaseURL,
		Timeout:        config.Get().PayPalTimeout,
	})

	userRepo := repository.NewUserRepository(db)
	recipientRepo := repository.NewRecipientRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)

	// services
	recipientService := services.NewRecipientService(recipientRepo)
	scheduleService := services.NewScheduleService(scheduleRepo, recipientRepo)
	transactionService := services.NewTransactionService(transactionRepo, scheduleRepo)
	paypalService := services.NewPayPalService(userRepo, paypalClient)
	payoutService := services.NewPayoutService(scheduleRepo, transactionRepo, userRepo, paypalClient, config.Get().PayPalEmailSubject)
	reconcileService := services.NewReconcileService(transactionRepo, redisAdap)
	healthService := services.NewHealthService(db)

	// webhook signature verification runs only when the platform app
	// credentials and webhook id are configured
	var verifier handlers.WebhookVerifier
	if config.Get().PayPalWebhookID != "" && config.Get().PayPalClientID != "" {
		verifier = services.NewPlatformWebhookVerifier(paypalClient, paypal.Credentials{
			ClientID:     config.Get().PayPalClientID,
			ClientSecret: config.Get().PayPalClientSecret,
			Mode:         model.PayPalMode(config.Get().PayPalMode),
		}, config.Get().PayPalWebhookID)
	} else if config.Get().IsProduction() {
		logger.Warn("webhook signature verification is disabled in production")
	}

	// v1 handlers
	recipientHandler := handlers.NewRecipientHandler(recipientService)
	scheduleHandler := handlers.NewScheduleHandler(scheduleService)
	transactionHandler := handlers.NewTransactionHandler(transactionService)
	paypalHandler := handlers.NewPayPalHandler(paypalService)
	webhookHandler := handlers.NewWebhookHandler(reconcileService, verifier)
	cronHandler := handlers.NewCronHandler(payoutService, config.Get().CronSecret, config.Get().IsProduction())
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterRecipientRoutes(g, recipientHandler)
	handlers.RegisterScheduleRoutes(g, scheduleHandler)
	handlers.RegisterTransactionRoutes(g, transactionHandler)
	handlers.RegisterPayPalRoutes(g, paypalHandler)
	handlers.RegisterWebhookRoutes(g, webhookHandler)
	handlers.RegisterCronRoutes(g, cronHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
