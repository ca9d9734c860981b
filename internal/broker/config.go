package broker

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	DefaultPort           = 8883
	DefaultConnectTimeout = 10 * time.Second
	DefaultPublishTimeout = 5 * time.Second

	clientIDPrefix = "gtfsrt-mqtt-"
)

// Config describes how to reach the MQTT broker.
type Config struct {
	Host           string
	Port           int
	TLS            bool
	TLSConfig      *tls.Config
	Username       string
	Password       string
	ClientID       string
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

type Option func(*Config) error

func WithPort(port int) Option {
	return func(config *Config) error {
		if port <= 0 || port > 65535 {
			return errors.Errorf("invalid broker port %d", port)
		}
		config.Port = port
		return nil
	}
}

func WithCredentials(username, password string) Option {
	return func(config *Config) error {
		config.Username = username
		config.Password = password
		return nil
	}
}

// WithTLS toggles TLS. A nil tlsConfig uses the system roots.
func WithTLS(enabled bool, tlsConfig *tls.Config) Option {
	return func(config *Config) error {
		config.TLS = enabled
		config.TLSConfig = tlsConfig
		return nil
	}
}

// WithClientID overrides the generated client id. An empty id keeps the
// generated one.
func WithClientID(clientID string) Option {
	return func(config *Config) error {
		if clientID != "" {
			config.ClientID = clientID
		}
		return nil
	}
}

func WithTimeouts(connect, publish time.Duration) Option {
	return func(config *Config) error {
		if connect <= 0 || publish <= 0 {
			return errors.Errorf("timeouts must be positive, got connect=%s publish=%s", connect, publish)
		}
		config.ConnectTimeout = connect
		config.PublishTimeout = publish
		return nil
	}
}

func NewConfig(host string, opts ...Option) (*Config, error) {
	if host == "" {
		return nil, errors.New("missing broker host")
	}
	config := &Config{
		Host:           host,
		Port:           DefaultPort,
		TLS:            true,
		ClientID:       clientIDPrefix + uuid.New().String(),
		ConnectTimeout: DefaultConnectTimeout,
		PublishTimeout: DefaultPublishTimeout,
	}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}
	return config, nil
}

// BrokerURL is the paho server address, ssl:// when TLS is on.
func (c *Config) BrokerURL() string {
	scheme := "tcp"
	if c.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

func (c *Config) tlsConfig() *tls.Config {
	if c.TLSConfig != nil {
		return c.TLSConfig
	}
	return &tls.Config{MinVersion: tls.VersionTLS12}
}
