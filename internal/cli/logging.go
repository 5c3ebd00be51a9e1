package cli

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/vsals/searchcoachdeploy/internal/config"
)

func newLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// loadConfig reads .env and the YAML config.
func loadConfig(path string) (config.Config, error) {
	if err := config.LoadEnvFile(".env"); err != nil {
		return config.Config{}, err
	}
	return config.Load(path)
}
