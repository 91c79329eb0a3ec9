package configuration

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/pkg/errors"

	"thriftwatch/internal/logger"
)

type Config struct {
	ServerAddress        string
	DatabaseURI          string
	RedisURI             string
	LogLevel             logger.Level
	LogToFile            bool
	AuthSecretKey        jwk.Key
	GeminiAPIKey         string
	GeminiModel          string
	MailAPIURL           string
	MailAPIKey           string
	EbayAppID            string
	VintedAPIKey         string
	CraigslistScraperURL string
	CraigslistScraperKey string

	SearchInterval         time.Duration
	SearchStaleness        time.Duration
	SearchBatchSize        int
	SearchBatchDelay       time.Duration
	HighRelevanceThreshold int
	NotificationCap        int
}

type tomlConfig struct {
	ServerAddress        string `toml:"server_address"`
	DatabaseURI          string `toml:"database_uri"`
	RedisURI             string `toml:"redis_uri"`
	LogLevel             string `toml:"log_level"`
	LogToFile            bool   `toml:"log_to_file"`
	AuthSecretKey        string `toml:"auth_secret_key"`
	GeminiAPIKey         string `toml:"gemini_api_key"`
	GeminiModel          string `toml:"gemini_model"`
	MailAPIURL           string `toml:"mail_api_url"`
	MailAPIKey           string `toml:"mail_api_key"`
	EbayAppID            string `toml:"ebay_app_id"`
	VintedAPIKey         string `toml:"vinted_api_key"`
	CraigslistScraperURL string `toml:"craigslist_scraper_url"`
	CraigslistScraperKey string `toml:"craigslist_scraper_key"`

	SearchInterval         string `toml:"search_interval"`
	SearchStaleness        string `toml:"search_staleness"`
	SearchBatchSize        int    `toml:"search_batch_size"`
	SearchBatchDelay       string `toml:"search_batch_delay"`
	HighRelevanceThreshold int    `toml:"high_relevance_threshold"`
	NotificationCap        int    `toml:"notification_cap"`
}

func GetConfig(path string) (*Config, error) {
	var tc tomlConfig
	_, err := toml.DecodeFile(path, &tc)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode toml file with path: %s", path)
	}

	if tc.ServerAddress == "" {
		tc.ServerAddress = "localhost:8888"
	}
	if tc.DatabaseURI == "" {
		tc.DatabaseURI = "mongodb://localhost:27017"
	}
	if tc.RedisURI == "" {
		tc.RedisURI = "redis://localhost:6379"
	}
	if tc.LogLevel == "" {
		tc.LogLevel = "INFO"
	}
	logLevel, err := logger.ParseLevel(tc.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse log_level")
	}

	if tc.AuthSecretKey == "" {
		return nil, errors.New("auth_secret_key is not set")
	}
	authSecretKey, err := jwk.FromRaw([]byte(tc.AuthSecretKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create key from auth_secret_key")
	}

	if tc.GeminiAPIKey == "" {
		return nil, errors.New("gemini_api_key is not set")
	}

	if tc.SearchInterval == "" {
		return nil, errors.New("search_interval is not set")
	}
	searchInterval, err := time.ParseDuration(tc.SearchInterval)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse search_interval: %s", tc.SearchInterval)
	}
	if searchInterval < 15*time.Second {
		return nil, errors.Errorf("search_interval too short (%v), minimum interval: 15s", searchInterval)
	}

	searchStaleness := 30 * time.Minute
	if tc.SearchStaleness != "" {
		if searchStaleness, err = time.ParseDuration(tc.SearchStaleness); err != nil {
			return nil, errors.Wrapf(err, "failed to parse search_staleness: %s", tc.SearchStaleness)
		}
	}

	searchBatchDelay := 2 * time.Second
	if tc.SearchBatchDelay != "" {
		if searchBatchDelay, err = time.ParseDuration(tc.SearchBatchDelay); err != nil {
			return nil, errors.Wrapf(err, "failed to parse search_batch_delay: %s", tc.SearchBatchDelay)
		}
	}

	if tc.SearchBatchSize <= 0 {
		tc.SearchBatchSize = 5
	}
	if tc.HighRelevanceThreshold <= 0 {
		tc.HighRelevanceThreshold = 8
	}
	if tc.NotificationCap <= 0 {
		tc.NotificationCap = 5
	}
	if tc.GeminiModel == "" {
		tc.GeminiModel = "gemini-2.5-flash"
	}

	return &Config{
		ServerAddress:          tc.ServerAddress,
		DatabaseURI:            tc.DatabaseURI,
		RedisURI:               tc.RedisURI,
		LogLevel:               logLevel,
		LogToFile:              tc.LogToFile,
		AuthSecretKey:          authSecretKey,
		GeminiAPIKey:           tc.GeminiAPIKey,
		GeminiModel:            tc.GeminiModel,
		MailAPIURL:             tc.MailAPIURL,
		MailAPIKey:             tc.MailAPIKey,
		EbayAppID:              tc.EbayAppID,
		VintedAPIKey:           tc.VintedAPIKey,
		CraigslistScraperURL:   tc.CraigslistScraperURL,
		CraigslistScraperKey:   tc.CraigslistScraperKey,
		SearchInterval:         searchInterval,
		SearchStaleness:        searchStaleness,
		SearchBatchSize:        tc.SearchBatchSize,
		SearchBatchDelay:       searchBatchDelay,
		HighRelevanceThreshold: tc.HighRelevanceThreshold,
		NotificationCap:        tc.NotificationCap,
	}, nil
}
