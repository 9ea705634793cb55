package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"os"
	"os/signal"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/ctu-vras/gnss-drivers/internal/bus"
	"github.com/ctu-vras/gnss-drivers/internal/config"
	"github.com/ctu-vras/gnss-drivers/internal/logging"
	"github.com/ctu-vras/gnss-drivers/internal/receiver"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file; built-in defaults apply when empty")
	brokerAddr := flag.String("broker", "", "MQTT broker address, overriding the config file")
	portName := flag.String("port", "", "Serial port the receiver is attached to, overriding the config file")
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
	if *portName != "" {
		cfg.Serial.Port = *portName
	}

	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = "nmea-bridge"
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

	port, err := serial.Open(serial.OpenOptions{
		PortName:        cfg.Serial.Port,
		BaudRate:        cfg.Serial.Baud,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		log.Error(ctx, "failed to open serial port", logging.String("port", cfg.Serial.Port), logging.Err(err))
		os.Exit(1)
	}
	defer port.Close()

	log.Info(ctx, "reading NMEA sentences",
		logging.String("port", cfg.Serial.Port),
		logging.Int("baud", int(cfg.Serial.Baud)),
		logging.String("fix_topic", client.Topics().Fix),
	)

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-stopCtx.Done()
		// Unblocks the blocked read; the pump sees the close as an error
		// and returns.
		port.Close()
	}()

	err = pump(ctx, port, receiver.NewTranslator(cfg.Serial.UEREM), client, log)
	if err != nil && stopCtx.Err() == nil {
		log.Error(ctx, "serial read failed", logging.Err(err))
		os.Exit(1)
	}
	log.Info(ctx, "bridge stopped")
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// pump reads receiver lines until the port fails or is closed,
// publishing every pair the translator assembles.
func pump(ctx context.Context, port io.Reader, tr *receiver.Translator, client *bus.Client, log logging.Logger) error {
	reader := bufio.NewReader(port)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		pair, ok := tr.Translate(line)
		if !ok {
			continue
		}
		if err := client.PublishFix(pair.Fix); err != nil {
			log.Warn(ctx, "failed to publish fix", logging.Err(err))
			continue
		}
		if err := client.PublishStatus(pair.Status); err != nil {
			log.Warn(ctx, "failed to publish status", logging.Err(err))
		}
	}
}
