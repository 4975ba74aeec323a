package internal

import (
	"errors"
	"fmt"

	amqpError "github.com/aleybovich/carrot-amqp/amqperror"
)

// Local misuse errors, returned synchronously from the call that caused them
var (
	ErrChannelIDOutOfRange   = errors.New("channel id out of range")
	ErrNoFreeChannelIDs      = errors.New("no free channel ids")
	ErrChannelClosed         = errors.New("channel is closed")
	ErrConnectionClosed      = errors.New("connection is closed")
	ErrDuplicateSubscription = errors.New("queue already has a subscription")
	ErrConsumerTagInUse      = errors.New("consumer tag already in use")
	ErrNilArgument           = errors.New("required argument is nil")
	ErrPredefinedExchange    = errors.New("predefined exchanges cannot be deleted")
)

// ConnectionError is a connection.close sent by the broker
type ConnectionError struct {
	ReplyCode uint16
	ReplyText string
	ClassID   uint16
	MethodID  uint16
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection closed by broker: %d %s (class %d, method %d)", e.ReplyCode, e.ReplyText, e.ClassID, e.MethodID)
}

// Code returns the reply code as an AMQP error code
func (e *ConnectionError) Code() amqpError.AmqpError {
	return amqpError.AmqpError(e.ReplyCode)
}

// ChannelError is a channel.close sent by the broker. Only that channel is affected.
type ChannelError struct {
	ChannelID uint16
	ReplyCode uint16
	ReplyText string
	ClassID   uint16
	MethodID  uint16
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %d closed by broker: %d %s (class %d, method %d)", e.ChannelID, e.ReplyCode, e.ReplyText, e.ClassID, e.MethodID)
}

func (e *ChannelError) Code() amqpError.AmqpError {
	return amqpError.AmqpError(e.ReplyCode)
}

// TCPConnectionFailedError means the first TCP connect never succeeded
type TCPConnectionFailedError struct {
	Addr string
	Err  error
}

func (e *TCPConnectionFailedError) Error() string {
	return fmt.Sprintf("tcp connection to %s failed: %v", e.Addr, e.Err)
}

func (e *TCPConnectionFailedError) Unwrap() error { return e.Err }

// PossibleAuthenticationFailureError means the broker dropped the connection
// during the handshake, after credentials were sent
type PossibleAuthenticationFailureError struct {
	User      string
	VHost     string
	Mechanism string
	Err       error
}

func (e *PossibleAuthenticationFailureError) Error() string {
	return fmt.Sprintf("connection closed during handshake, possible authentication failure for user %q on vhost %q (%s)", e.User, e.VHost, e.Mechanism)
}

func (e *PossibleAuthenticationFailureError) Unwrap() error { return e.Err }

// ProtocolError is raised for frames the client cannot make sense of
type ProtocolError struct {
	ChannelID uint16
	Code      amqpError.AmqpError
	Reason    string
	Err       error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error on channel %d: %s: %v", e.ChannelID, e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol error on channel %d: %s", e.ChannelID, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
