package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeclash/internal/api"
	"codeclash/internal/app/evaluator"
	"codeclash/internal/app/executor"
	"codeclash/internal/app/service"
	"codeclash/internal/common/security"
	"codeclash/internal/domain/repository"
	"codeclash/internal/platform/cache"
	"codeclash/internal/platform/config"
	"codeclash/internal/platform/database"
	"codeclash/internal/platform/logger"
)

func main() {
	config.Load()
	logger.Init(config.AppConfig.LogLevel)
	log := logger.For("server")

	security.InitJWT()

	db, err := database.Connect(config.AppConfig.DBConnStr)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()
	log.Info().Msg("database connected")

	rdb, err := cache.Connect(config.AppConfig.RedisAddr, config.AppConfig.RedisPassword, config.AppConfig.RedisDB)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer rdb.Close()
	log.Info().Msg("redis connected")

	// Repositories
	userRepo := repository.NewPgUserRepository(db)
	challengeRepo := repository.NewPgChallengeRepository(db)
	submissionRepo := repository.NewPgSubmissionRepository(db)
	battleRepo := repository.NewPgBattleRepository(db)

	// Execution pipeline
	execClient := executor.NewHTTPClient(executor.Options{
		BaseURL:          config.AppConfig.ExecutorURL,
		CompileTimeoutMs: config.AppConfig.ExecutorCompileTimeoutMs,
		RunTimeoutMs:     config.AppConfig.ExecutorRunTimeoutMs,
		RetryBackoff:     time.Duration(config.AppConfig.ExecutorRetryBackoffMs) * time.Millisecond,
		MaxCodeLength:    config.AppConfig.MaxCodeLength,
	}, logger.For("executor"))
	eval := evaluator.New(execClient, logger.For("evaluator"))

	streak, err := service.NewStreakTracker(config.AppConfig.StreakTimezone)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid streak timezone")
	}

	// Services
	authService := service.NewAuthService(userRepo)
	challengeService := service.NewChallengeService(challengeRepo)
	submissionService := service.NewSubmissionService(
		submissionRepo, challengeRepo, userRepo, eval, execClient, streak, db, logger.For("submissions"))
	battleService := service.NewBattleService(
		battleRepo, submissionRepo, challengeRepo, userRepo, eval, db, logger.For("battles"))
	leaderboardService := service.NewLeaderboardService(
		userRepo, submissionRepo, rdb, config.AppConfig.LeaderboardCacheTTL, logger.For("leaderboard"))

	router := api.NewRouter(authService, challengeService, submissionService, battleService, leaderboardService)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("port", config.AppConfig.APIPort).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-stop

	log.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("server stopped gracefully")
}
