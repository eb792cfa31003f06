// services/bridge/bridge.go
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"sensorhub-go/bus"
	"sensorhub-go/types"
	"sensorhub-go/x/timex"
)

// -----------------------------------------------------------------------------
// Public entry point
// -----------------------------------------------------------------------------

// Option configures the bridge before it starts.
type Option func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger.With(slog.String("service", "bridge"))
	}
}

// Start starts the bridge service. It blocks until ctx is cancelled.
// It listens for JSON config on topic {"config","bridge"} and (re)configures
// the uplink.
func Start(ctx context.Context, conn *bus.Connection, opts ...Option) {
	s := &Service{
		conn:       conn,
		stateTopic: bus.Topic{"bridge", "state"},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.run(ctx)
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config is the configuration expected on "config/bridge".
type Config struct {
	Transport TransportConfig `json:"transport"`
}

type TransportConfig struct {
	// "mqtt" is the only transport provided here; others may be added via
	// the same shape later.
	Type string      `json:"type"`
	MQTT *MQTTConfig `json:"mqtt,omitempty"`
}

// MQTTConfig carries enough information to open the broker connection.
type MQTTConfig struct {
	BrokerURL   string `json:"broker_url"`
	ClientID    string `json:"client_id,omitempty"`
	TopicPrefix string `json:"topic_prefix,omitempty"` // e.g. "hub/dev0"
	QoS         byte   `json:"qos,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

type Service struct {
	conn       *bus.Connection
	stateTopic bus.Topic
	logger     *slog.Logger

	mu     sync.Mutex
	curRun context.CancelFunc
}

// run waits for config and supervises a single uplink instance.
func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.Topic{"config", "bridge"})
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

func (s *Service) reconfigure(parent context.Context, cfg Config) {
	s.stopCurrent()

	if cfg.Transport.Type != "mqtt" || cfg.Transport.MQTT == nil {
		s.publishState("error", "unsupported_transport", nil)
		return
	}

	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	s.curRun = cancel
	s.mu.Unlock()

	go s.runLink(ctx, *cfg.Transport.MQTT)
}

// runLink owns one broker connection for its lifetime.
func (s *Service) runLink(ctx context.Context, cfg MQTTConfig) {
	if cfg.ClientID == "" {
		cfg.ClientID = "sensorhub"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		s.logger.Error("broker connect failed",
			slog.String("broker", cfg.BrokerURL), slog.Any("error", token.Error()))
		s.publishState("error", "connect_failed", token.Error())
		return
	}
	defer client.Disconnect(250)

	s.logger.Info("uplink established", slog.String("broker", cfg.BrokerURL))
	s.publishState("ready", "connected", nil)

	// Everything the sensors service publishes goes up.
	sub := s.conn.Subscribe(bus.Topic{"sensors", "#"})
	defer s.conn.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			s.publishState("stopped", "link_closed", nil)
			return
		case msg := <-sub.Channel():
			topic, ok := renderTopic(cfg.TopicPrefix, msg.Topic)
			if !ok {
				continue
			}
			payload, err := json.Marshal(msg.Payload)
			if err != nil {
				s.logger.Warn("payload encode failed", slog.String("topic", topic))
				continue
			}
			client.Publish(topic, cfg.QoS, msg.Retained, payload)
		}
	}
}

// renderTopic flattens a bus topic into an MQTT path under the prefix.
func renderTopic(prefix string, t bus.Topic) (string, bool) {
	parts := make([]string, 0, len(t)+1)
	if prefix != "" {
		parts = append(parts, prefix)
	}
	for _, tok := range t {
		switch v := tok.(type) {
		case string:
			parts = append(parts, v)
		case int:
			parts = append(parts, strconv.Itoa(v))
		default:
			return "", false
		}
	}
	return strings.Join(parts, "/"), true
}

func (s *Service) publishState(level, status string, err error) {
	st := types.HubState{Level: level, Status: status, TS: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(s.stateTopic, st, true))
}

func decodeConfig(p any) (Config, error) {
	var cfg Config
	switch v := p.(type) {
	case []byte:
		err := json.Unmarshal(v, &cfg)
		return cfg, err
	case string:
		err := json.Unmarshal([]byte(v), &cfg)
		return cfg, err
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return cfg, fmt.Errorf("bridge: config encode: %w", err)
		}
		err = json.Unmarshal(b, &cfg)
		return cfg, err
	}
}
