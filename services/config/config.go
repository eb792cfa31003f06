// services/config/config.go
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"sensorhub-go/bus"
)

const configPrefix = "config"

// Service reads the hub configuration file and publishes each top-level
// section as a retained "config/<section>" bus message. Services pick up
// their own section; they never see the file.
type Service struct {
	path   string
	logger *slog.Logger
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger.With(slog.String("service", "config"))
	}
}

// New creates a config service for the given YAML file path.
func New(path string, opts ...Option) *Service {
	s := &Service{
		path:   path,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish loads the file and publishes its sections. It returns an error
// when the file is missing or malformed; partial publishes do not happen.
func (s *Service) Publish(conn *bus.Connection) error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", s.path, err)
	}

	var sections map[string]any
	if err := yaml.Unmarshal(raw, &sections); err != nil {
		return fmt.Errorf("config: parsing %s: %w", s.path, err)
	}

	for key, payload := range sections {
		conn.Publish(&bus.Message{
			Topic:    bus.T(configPrefix, key),
			Payload:  payload,
			Retained: true,
		})
		s.logger.Info("config section published", slog.String("section", key))
	}
	return nil
}
