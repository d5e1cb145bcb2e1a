package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/openexchange/matching-core/config"
	"github.com/openexchange/matching-core/pkg/api"
	"github.com/openexchange/matching-core/pkg/kafka"
	"github.com/openexchange/matching-core/pkg/logging"
	"github.com/openexchange/matching-core/pkg/matching"
	"github.com/openexchange/matching-core/pkg/orderbook"
	"github.com/openexchange/matching-core/pkg/validate"
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

	if cfg.PprofAddr != "" {
		go func() {
			_ = http.ListenAndServe(cfg.PprofAddr, nil)
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	store, err := matching.New(ctx, cfg.Store)
	if err != nil {
		zap.S().Errorf("init store fail with err: %v", err)
		panic(err)
	}

	var validator *validate.Validator
	if cfg.RulesFile != "" {
		validator, err = validate.NewValidatorFromFile(cfg.RulesFile)
		if err != nil {
			zap.S().Errorf("load instrument rules fail with err: %v", err)
			panic(err)
		}
	}

	var producer *kafka.Producer
	if cfg.Feed != nil && cfg.Feed.Enabled {
		producer = kafka.NewProducer(cfg.Feed.Producer)
		topic := cfg.Feed.Topic
		store.RegisterTradeCallback(func(trades []orderbook.Trade) {
			for i := range trades {
				if err := producer.PublishJSON(ctx, topic, trades[i].InstrumentID, trades[i]); err != nil {
					zap.S().Warnf("publish trade %s fail: %v", trades[i].TradeID, err)
				}
			}
		})
		zap.S().Infof("trade feed enabled on topic %s", topic)
	}

	httpCfg := cfg.HTTP
	if httpCfg == nil {
		httpCfg = &config.HTTPConfig{Addr: ":8080"}
	}
	srv := api.NewServer(store, validator,
		time.Duration(httpCfg.RequestTimeoutSeconds)*time.Second)
	httpSrv := &http.Server{
		Addr:         httpCfg.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  time.Duration(httpCfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(httpCfg.WriteTimeoutSeconds) * time.Second,
	}

	go func() {
		zap.S().Infof("%s listening on %s", cfg.ServiceName, httpCfg.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.S().Errorf("http server error: %v", err)
			sigs <- syscall.SIGTERM
		}
	}()

	<-sigs
	zap.S().Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zap.S().Warnf("http shutdown: %v", err)
	}
	if producer != nil {
		_ = producer.Close()
	}
	cancel()

	zap.S().Info("exited cleanly")
}
