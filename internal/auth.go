package internal

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aleybovich/carrot-amqp/config"
	"github.com/aleybovich/carrot-amqp/protocol"
)

// AuthMechanism produces the SASL response sent in connection.start-ok
type AuthMechanism interface {
	Name() string
	Response(user, password string) (string, error)
	// Challenge answers a connection.secure challenge
	Challenge(challenge, user, password string) (string, error)
}

var (
	authMu         sync.RWMutex
	authMechanisms = map[string]func() AuthMechanism{
		config.AuthPlain:    func() AuthMechanism { return plainAuth{} },
		config.AuthAMQPlain: func() AuthMechanism { return amqPlainAuth{} },
		config.AuthExternal: func() AuthMechanism { return externalAuth{} },
	}
)

// RegisterAuthMechanism makes a mechanism available under name for Settings.AuthMechanism
func RegisterAuthMechanism(name string, factory func() AuthMechanism) {
	authMu.Lock()
	defer authMu.Unlock()
	authMechanisms[strings.ToUpper(name)] = factory
}

func authMechanismFor(name string) (AuthMechanism, error) {
	authMu.RLock()
	defer authMu.RUnlock()
	factory, ok := authMechanisms[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("unknown auth mechanism %q", name)
	}
	return factory(), nil
}

type plainAuth struct{}

func (plainAuth) Name() string { return config.AuthPlain }

func (plainAuth) Response(user, password string) (string, error) {
	return "\x00" + user + "\x00" + password, nil
}

func (plainAuth) Challenge(string, string, string) (string, error) {
	return "", fmt.Errorf("%s does not expect a challenge", config.AuthPlain)
}

type amqPlainAuth struct{}

func (amqPlainAuth) Name() string { return config.AuthAMQPlain }

func (amqPlainAuth) Response(user, password string) (string, error) {
	body, err := protocol.EncodeTableBody(protocol.Table{"LOGIN": user, "PASSWORD": password})
	if err != nil {
		return "", fmt.Errorf("encoding AMQPLAIN response: %w", err)
	}
	return string(body), nil
}

func (amqPlainAuth) Challenge(string, string, string) (string, error) {
	return "", fmt.Errorf("%s does not expect a challenge", config.AuthAMQPlain)
}

type externalAuth struct{}

func (externalAuth) Name() string { return config.AuthExternal }

func (externalAuth) Response(string, string) (string, error) { return "", nil }

func (externalAuth) Challenge(string, string, string) (string, error) { return "", nil }
