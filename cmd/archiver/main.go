package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/openexchange/matching-core/config"
	"github.com/openexchange/matching-core/pkg/archive"
	postgres_wrapper "github.com/openexchange/matching-core/pkg/infra/postgres"
	"github.com/openexchange/matching-core/pkg/kafka"
	"github.com/openexchange/matching-core/pkg/logging"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}
	if _, err := logging.Init(cfg.LogLevel); err != nil {
		panic(err)
	}

	configBytes, err := json.MarshalIndent(cfg, "", "   ")
	if err != nil {
		zap.S().Warnf("could not convert config to JSON: %v", err)
	} else {
		zap.S().Debugf("load config %s", string(configBytes))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		zap.S().Info("shutting down...")
		cancel()
	}()

	db := postgres_wrapper.InitPostgresWithBackoff(cfg.ArchiveDB)
	trades := archive.NewTradeSQLRepo(db)

	if cfg.Archiver == nil {
		zap.S().Error("archiver consumer config missing")
		os.Exit(1)
	}
	consumer, err := kafka.NewConsumerGroup(*cfg.Archiver)
	if err != nil {
		zap.S().Errorf("init consumer fail with err: %v", err)
		panic(err)
	}
	defer consumer.Close()

	w := archive.NewWorker(trades)
	zap.S().Infof("archiver consuming topic %s", cfg.Archiver.Topic)
	if err := w.Run(ctx, consumer); err != nil && err != context.Canceled {
		zap.S().Errorf("archiver stopped: %v", err)
	}

	zap.S().Info("exited cleanly")
}
