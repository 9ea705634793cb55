package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/ctu-vras/gnss-drivers/fixfilter"
	"github.com/ctu-vras/gnss-drivers/internal/bus"
	"github.com/ctu-vras/gnss-drivers/internal/config"
	"github.com/ctu-vras/gnss-drivers/internal/logging"
	"github.com/ctu-vras/gnss-drivers/internal/observability"
	"github.com/ctu-vras/gnss-drivers/internal/web"
	"github.com/ctu-vras/gnss-drivers/model"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file; built-in defaults apply when empty")
	brokerAddr := flag.String("broker", "", "MQTT broker address, overriding the config file")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics, overriding the config file")
	webAddr := flag.String("web-addr", "", "HTTP address for the quality API and websocket, overriding the config file")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load config", logging.String("path", *configPath), logging.Err(err))
		os.Exit(1)
	}
	if *brokerAddr != "" {
		cfg.MQTT.Broker = *brokerAddr
	}
	if *metricsAddr != "" {
		cfg.Listen.Metrics = *metricsAddr
	}
	if *webAddr != "" {
		cfg.Listen.Web = *webAddr
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}

	collector, err := observability.NewFilterCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(cfg.Listen.Metrics, collector, log)

	filter, err := fixfilter.New(cfg.Filter.Tuning(), log, fixfilter.WithMetrics(collector))
	if err != nil {
		log.Error(ctx, "invalid filter tuning", logging.Err(err))
		os.Exit(1)
	}

	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = "gnss-filter"
	}
	client, err := bus.Connect(bus.Config{
		Broker:      cfg.MQTT.Broker,
		ClientID:    clientID,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		TopicPrefix: cfg.MQTT.TopicPrefix,
	}, log)
	if err != nil {
		log.Error(ctx, "failed to connect to broker", logging.String("broker", cfg.MQTT.Broker), logging.Err(err))
		os.Exit(1)
	}
	defer client.Close()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	hub := web.NewHub(filter.Snapshot, log)
	go func() {
		if err := web.Serve(stopCtx, cfg.Listen.Web, hub); err != nil {
			log.Error(ctx, "web server exited", logging.Err(err))
		}
	}()

	publish := func(res fixfilter.Result) {
		if res.Report == nil {
			return
		}
		hub.Broadcast(*res.Report)
		if err := client.PublishQuality(*res.Report); err != nil {
			log.Warn(ctx, "failed to publish quality report", logging.Err(err))
		}
		if res.Fix != nil {
			if err := client.PublishFilteredFix(*res.Fix); err != nil {
				log.Warn(ctx, "failed to publish filtered fix", logging.Err(err))
			}
		}
	}

	pairer := bus.NewPairer(cfg.MQTT.PairingWindow.Duration(),
		func(fix model.FixRecord, status model.StatusRecord) {
			publish(filter.ProcessPair(ctx, fix, status))
		},
		func(fix model.FixRecord) {
			publish(filter.ProcessFixOnly(ctx, fix))
		},
	)
	defer pairer.Stop()

	if err := client.SubscribeFixes(pairer.AddFix); err != nil {
		log.Error(ctx, "failed to subscribe to fixes", logging.Err(err))
		os.Exit(1)
	}
	if err := client.SubscribeStatus(pairer.AddStatus); err != nil {
		log.Error(ctx, "failed to subscribe to status", logging.Err(err))
		os.Exit(1)
	}
	if err := client.SubscribeReference(func(upd model.ReferenceUpdate) {
		if err := filter.SetReference(ctx, upd); err != nil {
			log.Warn(ctx, "rejected reference update", logging.Err(err))
		}
	}); err != nil {
		log.Error(ctx, "failed to subscribe to reference updates", logging.Err(err))
		os.Exit(1)
	}

	log.Info(ctx, "fix filter running",
		logging.String("broker", cfg.MQTT.Broker),
		logging.String("fix_topic", client.Topics().Fix),
		logging.String("web_addr", cfg.Listen.Web),
	)

	<-stopCtx.Done()

	log.Info(ctx, "shutting down fix filter")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func serveMetrics(addr string, collector *observability.FilterCollector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
