package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/graphcs/flexpay/internal/config"
	"github.com/graphcs/flexpay/internal/paypal"
	"github.com/graphcs/flexpay/internal/repository"
	"github.com/graphcs/flexpay/internal/services"
	"github.com/graphcs/flexpay/pkg/logger"
	"github.com/graphcs/flexpay/pkg/pg"
	"github.com/graphcs/flexpay/pkg/prom"
	"github.com/graphcs/flexpay/pkg/redis"
	"github.com/robfig/cron/v3"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// runLockKey guards against overlapping cycles when several runner
// replicas share a schedule.
const runLockKey = "payout:runner:lock"

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

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
	scheduleRepo := repository.NewScheduleRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)

	payoutService := services.NewPayoutService(scheduleRepo, transactionRepo, userRepo, paypalClient, config.Get().PayPalEmailSubject)

	lockTTL := config.Get().RunnerLockTTL
	runCycle := func() {
		acquired, err := redisAdap.SetNX(runLockKey, []byte(hostname), lockTTL)
		if err != nil {
			logger.Error("failed to acquire run lock", "error", err)
			return
		}
		if !acquired {
			logger.Info("payout cycle already running elsewhere, skipping")
			return
		}
		defer func() {
			if err := redisAdap.Del(runLockKey); err != nil {
				logger.Warn("failed to release run lock", "error", err)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), lockTTL)
		defer cancel()

		result, err := payoutService.ProcessDueSchedules(ctx, time.Now())
		if err != nil {
			logger.Error("payout cycle failed", "error", err)
			return
		}
		logger.Info("payout cycle finished",
			"processed", result.Processed,
			"failed", result.Failed,
			"skipped", result.Skipped)
	}

	c := cron.New()
	if _, err := c.AddFunc(config.Get().RunnerSchedule, runCycle); err != nil {
		logger.Error("invalid runner schedule", "schedule", config.Get().RunnerSchedule, "error", err)
		return
	}
	c.Start()
	logger.Info("payout runner started", "schedule", config.Get().RunnerSchedule)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	// let an in-flight cycle finish before exiting
	<-c.Stop().Done()
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
