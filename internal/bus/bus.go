// Package bus connects the gnss-drivers binaries over MQTT. It owns the
// topic layout, the JSON wire codecs for the model types and a pairing
// stage that reunites fix and status records published on separate topics.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ctu-vras/gnss-drivers/internal/logging"
	"github.com/ctu-vras/gnss-drivers/model"
)

// ErrNoBroker indicates a Client was configured without a broker address.
var ErrNoBroker = errors.New("bus: broker address required")

// Topics is the topic layout under one prefix. Fix, Status and Reference
// are consumed by the filter; FilteredFix and Quality are what it
// publishes back.
type Topics struct {
	Fix         string
	Status      string
	Reference   string
	FilteredFix string
	Quality     string
}

// TopicsFor derives the topic layout from a prefix such as "gnss".
func TopicsFor(prefix string) Topics {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = "gnss"
	}
	return Topics{
		Fix:         prefix + "/fix",
		Status:      prefix + "/status",
		Reference:   prefix + "/reference",
		FilteredFix: prefix + "/fix_filtered",
		Quality:     prefix + "/quality",
	}
}

// Config carries the broker connection settings.
type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// Client wraps an MQTT connection with the gnss topic layout.
type Client struct {
	cli    mqtt.Client
	topics Topics
	log    logging.Logger
}

// Connect dials the broker and blocks until the connection is up or
// fails. Handlers passed to the Subscribe methods run on the paho client's
// router goroutines; ordering across topics is not guaranteed.
func Connect(cfg Config, log logging.Logger) (*Client, error) {
	if cfg.Broker == "" {
		return nil, ErrNoBroker
	}
	if log == nil {
		log = logging.Noop()
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetOrderMatters(false).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn(context.Background(), "mqtt connection lost", logging.Err(err))
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Info(context.Background(), "mqtt connected", logging.String("broker", cfg.Broker))
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	cli := mqtt.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Broker, token.Error())
	}
	return &Client{cli: cli, topics: TopicsFor(cfg.TopicPrefix), log: log}, nil
}

// Topics returns the layout the client was built with.
func (c *Client) Topics() Topics { return c.topics }

// Close flushes in-flight messages and disconnects.
func (c *Client) Close() {
	c.cli.Disconnect(250)
}

// SubscribeFixes delivers every valid fix record on the fix topic.
// Malformed payloads are logged and dropped.
func (c *Client) SubscribeFixes(handler func(model.FixRecord)) error {
	return c.subscribe(c.topics.Fix, func(payload []byte, log logging.Logger) {
		fix, err := DecodeFix(payload)
		if err != nil {
			log.Warn(context.Background(), "dropping fix message", logging.Err(err))
			return
		}
		handler(fix)
	})
}

// SubscribeStatus delivers every valid status record on the status topic.
func (c *Client) SubscribeStatus(handler func(model.StatusRecord)) error {
	return c.subscribe(c.topics.Status, func(payload []byte, log logging.Logger) {
		status, err := DecodeStatus(payload)
		if err != nil {
			log.Warn(context.Background(), "dropping status message", logging.Err(err))
			return
		}
		handler(status)
	})
}

// SubscribeReference delivers forced-reference updates. Frame and zone
// validation stays with the filter; only JSON shape is checked here.
func (c *Client) SubscribeReference(handler func(model.ReferenceUpdate)) error {
	return c.subscribe(c.topics.Reference, func(payload []byte, log logging.Logger) {
		upd, err := DecodeReference(payload)
		if err != nil {
			log.Warn(context.Background(), "dropping reference message", logging.Err(err))
			return
		}
		handler(upd)
	})
}

func (c *Client) subscribe(topic string, handle func([]byte, logging.Logger)) error {
	log := logging.ForStream(c.log, topic)
	token := c.cli.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		handle(msg.Payload(), log)
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, token.Error())
	}
	return nil
}

// PublishQuality publishes a quality report, retained so late subscribers
// see the last verdict immediately.
func (c *Client) PublishQuality(report model.QualityReport) error {
	return c.publish(c.topics.Quality, true, report)
}

// PublishFilteredFix publishes a covariance-inflated fix.
func (c *Client) PublishFilteredFix(fix model.FixRecord) error {
	return c.publish(c.topics.FilteredFix, false, fix)
}

// PublishFix publishes a raw fix record (used by the producers).
func (c *Client) PublishFix(fix model.FixRecord) error {
	return c.publish(c.topics.Fix, false, fix)
}

// PublishStatus publishes a raw status record (used by the producers).
func (c *Client) PublishStatus(status model.StatusRecord) error {
	return c.publish(c.topics.Status, false, status)
}

// PublishReference publishes a forced-reference update, retained so a
// filter restarted mid-mission picks the anchor back up.
func (c *Client) PublishReference(upd model.ReferenceUpdate) error {
	return c.publish(c.topics.Reference, true, upd)
}

func (c *Client) publish(topic string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding message for %s: %w", topic, err)
	}
	token := c.cli.Publish(topic, 0, retained, payload)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// DecodeFix parses and validates a fix record payload.
func DecodeFix(payload []byte) (model.FixRecord, error) {
	var fix model.FixRecord
	if err := json.Unmarshal(payload, &fix); err != nil {
		return model.FixRecord{}, err
	}
	if err := fix.Validate(); err != nil {
		return model.FixRecord{}, err
	}
	return fix, nil
}

// DecodeStatus parses and validates a status record payload.
func DecodeStatus(payload []byte) (model.StatusRecord, error) {
	var status model.StatusRecord
	if err := json.Unmarshal(payload, &status); err != nil {
		return model.StatusRecord{}, err
	}
	if err := status.Validate(); err != nil {
		return model.StatusRecord{}, err
	}
	return status, nil
}

// DecodeReference parses a forced-reference payload.
func DecodeReference(payload []byte) (model.ReferenceUpdate, error) {
	var upd model.ReferenceUpdate
	if err := json.Unmarshal(payload, &upd); err != nil {
		return model.ReferenceUpdate{}, err
	}
	return upd, nil
}
