package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"thriftwatch/internal/ai"
	"thriftwatch/internal/client"
	"thriftwatch/internal/configuration"
	"thriftwatch/internal/database"
	"thriftwatch/internal/logger"
	"thriftwatch/internal/marketplace"
	"thriftwatch/internal/server"
)

func main() {
	runApp()
	time.Sleep(10 * time.Second)
	os.Exit(1)
}

func runApp() error {
	appContext := context.Background()
	logOutput := io.Writer(os.Stdout)
	appLogger := logger.NewLogger(logger.LevelInfo, logOutput)

	defer func() {
		if r := recover(); r != nil {
			appLogger.Errorf("APPLICATION CRASHED: %+v", r)
		}
	}()

	config, err := configuration.GetConfig("config.toml")
	if err != nil {
		appLogger.Error("Error getting configuration from config.toml:", err)
		return err
	}

	if config.LogToFile {
		logFile, err := os.OpenFile("thriftwatch_backend.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			appLogger.Error("Error opening log file:", err)
			return err
		}
		defer func() {
			if err := logFile.Close(); err != nil {
				appLogger.Error("Error closing log file:", err)
			}
		}()
		logOutput = io.MultiWriter(logOutput, logFile)
	}
	appLogger = logger.NewLogger(config.LogLevel, logOutput)

	appLogger.Info("Connecting to DB at", config.DatabaseURI)
	dbConn, err := database.ConnectDB(appContext, config.DatabaseURI)
	if err != nil {
		appLogger.Error("Error connecting to DB:", err)
		return err
	}
	defer func() {
		if err := dbConn.Disconnect(appContext); err != nil {
			appLogger.Error("Error disconnecting from DB:", err)
		}
	}()

	appLogger.Info("Connecting to Redis at", config.RedisURI)
	rdb, err := database.ConnectRedis(appContext, config.RedisURI)
	if err != nil {
		appLogger.Error("Error connecting to Redis:", err)
		return err
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			appLogger.Error("Error closing Redis connection:", err)
		}
	}()

	generator, err := ai.NewGenerator(appContext, config.GeminiAPIKey, config.GeminiModel)
	if err != nil {
		appLogger.Error("Error creating Gemini generator:", err)
		return err
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	registry := marketplace.NewRegistry(httpClient, marketplace.Config{
		EbayAppID:            config.EbayAppID,
		VintedAPIKey:         config.VintedAPIKey,
		CraigslistScraperURL: config.CraigslistScraperURL,
		CraigslistScraperKey: config.CraigslistScraperKey,
	}, appLogger)

	srv := server.Server{
		DB:       database.Database{Database: dbConn.Database(database.Name)},
		Locker:   database.Locker{RDB: rdb},
		Registry: registry,
		Aggregator: marketplace.Aggregator{
			Registry: registry,
			Logger:   appLogger,
		},
		Scorer: ai.NewScorer(generator, appLogger),
		Client: client.Client{
			Client:     httpClient,
			MailAPIURL: config.MailAPIURL,
			MailAPIKey: config.MailAPIKey,
			Logger:     appLogger,
		},
		Logger:        appLogger,
		AuthSecretKey: config.AuthSecretKey,
		Policy: server.Policy{
			Staleness:              config.SearchStaleness,
			BatchSize:              config.SearchBatchSize,
			BatchDelay:             config.SearchBatchDelay,
			HighRelevanceThreshold: config.HighRelevanceThreshold,
			NotificationCap:        config.NotificationCap,
			RecentLookback:         100,
		},
	}

	appLogger.Info("Starting search scheduler with interval:", config.SearchInterval)
	go srv.RunDueSearchesInInterval(appContext, time.NewTicker(config.SearchInterval))

	httpSrv := &http.Server{
		Handler:      srv.Router(),
		Addr:         config.ServerAddress,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	appLogger.Info("Serving on", httpSrv.Addr)
	return httpSrv.ListenAndServe()
}
