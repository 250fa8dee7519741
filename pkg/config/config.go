package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
)

// Config holds all process-wide settings. It's constructed once at startup
// and passed explicitly to the components that need it.
type Config struct {
	BcryptCost                int
	DatabaseBusyTimeout       time.Duration
	DatabaseConnectRetryCount int
	DatabaseConnectRetryDelay time.Duration
	DatabaseDebug             bool
	DatabaseFilePath          string
	DatabaseMaxRetries        int
	DefaultPageSize           int
	Hostname                  string
	JWTSecret                 string
	LoanPeriod                time.Duration
	ResetTokenSize            int
	ServerHost                string
	ServerPort                int
}

const environmentENV = "ENVIRONMENT"

func New() (*Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := &Config{
		BcryptCost:                12,
		DatabaseBusyTimeout:       5 * time.Second,
		DatabaseConnectRetryCount: 5,
		DatabaseConnectRetryDelay: 2 * time.Second,
		DatabaseMaxRetries:        3,
		DefaultPageSize:           20,
		Hostname:                  hostname,
		LoanPeriod:                14 * 24 * time.Hour,
		ResetTokenSize:            64,
		ServerPort:                4780,
	}

	switch os.Getenv(environmentENV) {
	case "development", "":
		loadDevelopmentConfig(cfg)
	case "test":
		loadTestConfig(cfg)
	case "production":
		loadProductionConfig(cfg)
	}

	return cfg, nil
}
