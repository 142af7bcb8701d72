// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/okr-evaluator/internal/collection"
	"github.com/pdiddy/okr-evaluator/internal/evalclient"
	"github.com/pdiddy/okr-evaluator/internal/history"
	"github.com/pdiddy/okr-evaluator/internal/logging"
	"github.com/pdiddy/okr-evaluator/internal/session"
	"github.com/pdiddy/okr-evaluator/pkg/types"
)

func setDefaults() {
	viper.SetDefault("api.base_url", "http://localhost:8000")
	viper.SetDefault("api.cache_size", 64)
	viper.SetDefault("api.max_retries", 3)
	viper.SetDefault("http.timeout", types.DefaultTimeout)
	viper.SetDefault("http.user_agent", "okr-evaluator/"+version)
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.dir", defaultHistoryDir())
	viper.SetDefault("log.level", logging.DefaultLevel)
}

func defaultHistoryDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".okr-evaluator"
	}
	return filepath.Join(home, ".config", "okr-evaluator")
}

// loadConfig reads the effective configuration from viper.
func loadConfig() types.AppConfig {
	return types.AppConfig{
		Client: types.ClientConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("http.timeout"),
				UserAgent: viper.GetString("http.user_agent"),
			},
			BaseURL:    viper.GetString("api.base_url"),
			CacheSize:  viper.GetInt("api.cache_size"),
			MaxRetries: viper.GetInt("api.max_retries"),
		},
		History: types.HistoryConfig{
			Enabled: viper.GetBool("history.enabled"),
			Dir:     viper.GetString("history.dir"),
		},
		Log: types.LogConfig{
			Level: viper.GetString("log.level"),
		},
	}
}

var (
	clientMu     sync.Mutex
	sharedClient *evalclient.Client
	sharedConfig types.ClientConfig
)

// newClient returns the process-wide client for cfg.Client, so its
// objective cache is shared by every caller in this process. A changed
// client configuration replaces it.
func newClient(cfg types.AppConfig) *evalclient.Client {
	clientMu.Lock()
	defer clientMu.Unlock()
	if sharedClient == nil || sharedConfig != cfg.Client {
		sharedClient = evalclient.New(cfg.Client, evalclient.WithLogger(logger.Named("client")))
		sharedConfig = cfg.Client
	}
	return sharedClient
}

// openHistory opens the local history store, or returns nil when history
// is disabled. An unusable store is logged and treated as disabled so the
// remote commands keep working.
func openHistory(cfg types.AppConfig) *history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	store, err := history.NewStore(cfg.History)
	if err != nil {
		logger.Warn("local history unavailable", zap.Error(err))
		return nil
	}
	return store
}

// sessionOptions wires the logger and, when a store is open, the history
// recorder into a new session.
func sessionOptions(store *history.Store) []session.Option {
	opts := []session.Option{session.WithLogger(logger.Named("session"))}
	if store != nil {
		opts = append(opts, session.WithObserver(&history.Recorder{Store: store, Log: logger.Named("history")}))
	}
	return opts
}

// collectionFetcher lists from the service, falling back to local history
// when the service cannot be reached.
func collectionFetcher(client *evalclient.Client, store *history.Store) collection.Fetcher {
	if store == nil {
		return client
	}
	return &collection.FallbackFetcher{Primary: client, Secondary: store, Log: logger.Named("collection")}
}
