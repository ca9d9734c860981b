package broker

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrNotConnected = errors.New("not connected to broker")

// ConnectError means the first handshake with the broker failed. It is
// fatal for the process.
type ConnectError struct {
	Broker string
	Err    error
}

func (e *ConnectError) Error() string { return fmt.Sprintf("connect to %s: %s", e.Broker, e.Err) }
func (e *ConnectError) Unwrap() error { return e.Err }
func (e *ConnectError) Cause() error  { return e.Err }

// PublishError means one message was not handed to the broker. Only that
// message is lost.
type PublishError struct {
	Topic string
	Err   error
}

func (e *PublishError) Error() string { return fmt.Sprintf("publish on %s: %s", e.Topic, e.Err) }
func (e *PublishError) Unwrap() error { return e.Err }
func (e *PublishError) Cause() error  { return e.Err }
