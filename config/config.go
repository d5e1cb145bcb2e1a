package config

import (
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	postgres_wrapper "github.com/openexchange/matching-core/pkg/infra/postgres"
	"github.com/openexchange/matching-core/pkg/kafka"
	"github.com/openexchange/matching-core/pkg/matching"
)

type HTTPConfig struct {
	Addr                  string `yaml:"addr"`
	ReadTimeoutSeconds    int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds   int    `yaml:"write_timeout_seconds"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

type FeedConfig struct {
	Enabled  bool                 `yaml:"enabled"`
	Topic    string               `yaml:"topic"`
	Producer kafka.ProducerConfig `yaml:"producer"`
}

type AppConfig struct {
	ServiceName string `yaml:"service_name"`
	LogLevel    string `yaml:"log_level"`
	PprofAddr   string `yaml:"pprof_addr"`

	HTTP      *HTTPConfig                      `yaml:"http"`
	Store     *matching.Config                 `yaml:"store"`
	RulesFile string                           `yaml:"rules_file"`
	Feed      *FeedConfig                      `yaml:"feed"`
	ArchiveDB *postgres_wrapper.PostgresConfig `yaml:"archive_db"`
	Archiver  *kafka.ConsumerConfig            `yaml:"archiver"`
}

// Load load config from file and environment variables.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	fields := []interface{}{
		"func",
		"config.readFromFile",
		"filePath",
		filePath,
	}

	sugar := zap.S().With(fields...)

	sugar.Debug("Load config...")
	zap.S().Debugf("CONFIG_FILE=%v", filePath)

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := &AppConfig{}

	err = yaml.Unmarshal(configBytes, cfg)
	if err != nil {
		sugar.Error("Failed to parse config file")
		return nil, err
	}

	zap.S().Debugf("config: %+v", cfg)

	return cfg, nil
}
