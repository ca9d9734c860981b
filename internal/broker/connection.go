package broker

import (
	"context"
	"sync"
	"sync/atomic"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hove-io/gtfsrt-mqtt/internal/scheduler"
)

// State of the broker session.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Starter is what the connection starts on every successful connect.
type Starter interface {
	Start(ctx context.Context) *scheduler.Handle
}

// Connection owns the MQTT client and the scheduler lifecycle: every
// successful connect replaces the running scheduler handle, so exactly one
// set of tasks is alive while the session exists.
type Connection struct {
	config    Config
	newClient func(*mqtt.ClientOptions) mqtt.Client

	state     int32
	connected int32 // reached Connected at least once

	clientMutex sync.RWMutex
	client      mqtt.Client

	// held while a scheduler handle is replaced; Publish never takes it
	sessionMutex sync.Mutex
	ctx          context.Context
	starter      Starter
	handle       *scheduler.Handle
	closed       bool
}

func NewConnection(config Config) *Connection {
	return &Connection{
		config:    config,
		newClient: mqtt.NewClient,
	}
}

// InitLog routes the paho client logs to logrus.
func InitLog() {
	entry := logrus.WithField("component", "paho")
	mqtt.ERROR = entry
	mqtt.CRITICAL = entry
	mqtt.WARN = entry
}

// Run connects to the broker then blocks until ctx is done. A failed first
// handshake is returned as a *ConnectError. Losing the session later goes
// through paho's reconnection, the scheduler is restarted on each connect.
func (c *Connection) Run(ctx context.Context, starter Starter) error {
	c.sessionMutex.Lock()
	c.ctx = ctx
	c.starter = starter
	c.closed = false
	c.sessionMutex.Unlock()

	client := c.newClient(c.clientOptions())
	c.clientMutex.Lock()
	c.client = client
	c.clientMutex.Unlock()

	c.setState(Connecting)
	logrus.Info("Connecting to broker ", c.config.BrokerURL())
	token := client.Connect()
	var err error
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		err = errors.Errorf("no answer after %s", c.config.ConnectTimeout)
	} else {
		err = token.Error()
	}
	if err != nil {
		c.shutdown()
		return &ConnectError{Broker: c.config.BrokerURL(), Err: err}
	}

	<-ctx.Done()
	logrus.Info("Disconnecting from broker")
	c.shutdown()
	return nil
}

// Publish sends one message with QoS 0, not retained.
func (c *Connection) Publish(topic string, payload []byte) error {
	if !c.IsConnected() {
		BrokerPublishErrors.Inc()
		return &PublishError{Topic: topic, Err: ErrNotConnected}
	}
	c.clientMutex.RLock()
	client := c.client
	c.clientMutex.RUnlock()

	token := client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(c.config.PublishTimeout) {
		BrokerPublishErrors.Inc()
		return &PublishError{Topic: topic, Err: errors.Errorf("no ack after %s", c.config.PublishTimeout)}
	}
	if err := token.Error(); err != nil {
		BrokerPublishErrors.Inc()
		return &PublishError{Topic: topic, Err: err}
	}
	BrokerPublishedMessages.Inc()
	return nil
}

func (c *Connection) State() State {
	return State(atomic.LoadInt32(&c.state))
}

func (c *Connection) IsConnected() bool {
	return c.State() == Connected
}

// HasConnected tells whether the session reached Connected at least once.
func (c *Connection) HasConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

func (c *Connection) GetBrokerURL() string {
	return c.config.BrokerURL()
}

func (c *Connection) setState(s State) {
	previous := State(atomic.SwapInt32(&c.state, int32(s)))
	if previous != s {
		logrus.Debugf("Broker session %s -> %s", previous, s)
	}
}

func (c *Connection) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(c.config.BrokerURL()).
		SetClientID(c.config.ClientID).
		SetUsername(c.config.Username).
		SetPassword(c.config.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetConnectTimeout(c.config.ConnectTimeout).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost).
		SetReconnectingHandler(c.onReconnecting)
	if c.config.TLS {
		opts.SetTLSConfig(c.config.tlsConfig())
	}
	return opts
}

func (c *Connection) onConnect(_ mqtt.Client) {
	c.sessionMutex.Lock()
	defer c.sessionMutex.Unlock()
	if c.closed {
		return
	}

	if c.handle != nil {
		logrus.Info("Reconnected to broker, restarting scheduler")
		c.handle.Cancel()
		c.handle = nil
	} else {
		logrus.Info("Connected to broker ", c.config.BrokerURL())
	}
	BrokerConnects.Inc()
	atomic.StoreInt32(&c.connected, 1)
	c.setState(Connected)
	c.handle = c.starter.Start(c.ctx)
}

func (c *Connection) onConnectionLost(_ mqtt.Client, err error) {
	BrokerConnectionLosses.Inc()
	c.setState(Reconnecting)
	logrus.Warn("Broker connection lost: ", err)
}

func (c *Connection) onReconnecting(_ mqtt.Client, _ *mqtt.ClientOptions) {
	c.setState(Reconnecting)
	logrus.Debug("Reconnecting to broker ", c.config.BrokerURL())
}

func (c *Connection) shutdown() {
	c.sessionMutex.Lock()
	c.closed = true
	handle := c.handle
	c.handle = nil
	c.sessionMutex.Unlock()

	if handle != nil {
		handle.Cancel()
	}
	c.clientMutex.RLock()
	client := c.client
	c.clientMutex.RUnlock()
	if client != nil && client.IsConnectionOpen() {
		client.Disconnect(250)
	}
	c.setState(Disconnected)
}
