package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/ctu-vras/gnss-drivers/geodesy"
	"github.com/ctu-vras/gnss-drivers/internal/bus"
	"github.com/ctu-vras/gnss-drivers/internal/config"
	"github.com/ctu-vras/gnss-drivers/internal/logging"
	"github.com/ctu-vras/gnss-drivers/internal/sim"
	"github.com/ctu-vras/gnss-drivers/model"
	"github.com/ctu-vras/gnss-drivers/skyview"
	"github.com/ctu-vras/gnss-drivers/timectrl"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file; built-in defaults apply when empty")
	brokerAddr := flag.String("broker", "", "MQTT broker address, overriding the config file")
	duration := flag.Duration("duration", 0, "Data time to simulate; 0 runs until interrupted")
	accelerated := flag.Bool("accelerated", false, "Step data time as fast as publishing keeps up instead of in real time")
	publishRef := flag.Bool("publish-reference", false, "Publish the walk centre as a retained forced reference")
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

	sky := loadCatalogue(log, cfg.Sim.TLEPath)

	track, err := sim.NewTrack(sim.Config{
		CenterLat:            cfg.Sim.CenterLatDeg,
		CenterLon:            cfg.Sim.CenterLonDeg,
		Alt:                  cfg.Sim.AltM,
		RadiusM:              cfg.Sim.RadiusM,
		SpeedMS:              cfg.Sim.SpeedMS,
		NoiseSigmaM:          cfg.Sim.NoiseSigmaM,
		NoiseCorr:            cfg.Sim.NoiseCorr,
		ElevationMaskDeg:     cfg.Sim.ElevationMaskDeg,
		JumpEvery:            cfg.Sim.JumpEvery.Duration(),
		JumpFor:              cfg.Sim.JumpFor.Duration(),
		JumpMetres:           cfg.Sim.JumpMetres,
		CorrectionsDropEvery: cfg.Sim.CorrectionsDropEvery.Duration(),
		CorrectionsDropFor:   cfg.Sim.CorrectionsDropFor.Duration(),
	}, sky)
	if err != nil {
		log.Error(ctx, "invalid track config", logging.Err(err))
		os.Exit(1)
	}

	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = "gnss-sim"
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

	start := time.Now().UTC().Truncate(time.Second)

	if *publishRef {
		if err := publishReference(client, cfg, start); err != nil {
			log.Error(ctx, "failed to publish reference", logging.Err(err))
			os.Exit(1)
		}
		log.Info(ctx, "published forced reference at walk centre",
			logging.Float64("lat", cfg.Sim.CenterLatDeg), logging.Float64("lon", cfg.Sim.CenterLonDeg))
	}

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	cadence := timectrl.NewCadence(start, cfg.Sim.Period.Duration(), mode)

	ticks := 0
	cadence.AddListener(func(stamp time.Time) {
		fix, status := track.At(stamp)
		if err := client.PublishFix(fix); err != nil {
			log.Warn(ctx, "failed to publish fix", logging.Err(err))
			return
		}
		if err := client.PublishStatus(status); err != nil {
			log.Warn(ctx, "failed to publish status", logging.Err(err))
		}
		ticks++
	})

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Info(ctx, "simulated receiver running",
		logging.String("broker", cfg.MQTT.Broker),
		logging.Duration("period", cfg.Sim.Period.Duration()),
		logging.Duration("duration", *duration),
	)

	<-cadence.Run(stopCtx, *duration)

	log.Info(ctx, "simulation finished",
		logging.Int("ticks", ticks),
		logging.String("data_time", cadence.Now().Format(time.RFC3339)),
	)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// loadCatalogue reads a TLE file into a constellation for satellite
// visibility counts. An empty path or unreadable file yields an empty
// catalogue, and the track falls back to a fixed satellite count.
func loadCatalogue(log logging.Logger, path string) skyview.Constellation {
	if path == "" {
		return skyview.Constellation{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn(context.Background(), "skipping TLE catalogue", logging.String("path", path), logging.Err(err))
		return skyview.Constellation{}
	}
	sky, err := skyview.ParseTLE(string(data))
	if err != nil {
		log.Warn(context.Background(), "failed to parse TLE catalogue", logging.String("path", path), logging.Err(err))
		return skyview.Constellation{}
	}
	log.Info(context.Background(), "loaded TLE catalogue", logging.String("path", path), logging.Int("satellites", sky.Len()))
	return sky
}

// publishReference anchors the filter to the walk centre. The retained
// message means a filter started later still receives it.
func publishReference(client *bus.Client, cfg config.Config, stamp time.Time) error {
	pt, err := geodesy.ToUTM(cfg.Sim.CenterLatDeg, cfg.Sim.CenterLonDeg)
	if err != nil {
		return err
	}
	return client.PublishReference(model.ReferenceUpdate{
		Stamp:    stamp,
		Frame:    geodesy.FrameUTM,
		Easting:  pt.Easting,
		Northing: pt.Northing,
		Zone:     pt.Zone.String(),
	})
}
