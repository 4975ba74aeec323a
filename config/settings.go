package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
)

const (
	DefaultHost     = "127.0.0.1"
	DefaultPort     = 5672
	DefaultTLSPort  = 5671
	DefaultVHost    = "/"
	DefaultUser     = "guest"
	DefaultPassword = "guest"
	DefaultFrameMax = 131072
	DefaultTimeout  = 3 * time.Second
	DefaultLocale   = "en_GB"

	frameMinSize = 4096
)

var (
	errLoggingConflict = errors.New("CustomLogger cannot be used together with DisableLogging")

	// ErrInvalidURI is returned by ParseURI for malformed or non-AMQP URIs
	ErrInvalidURI = errors.New("invalid AMQP URI")
)

// Settings is the connection settings surface
type Settings struct {
	Host     string
	Port     int
	VHost    string
	User     string
	Password string

	// Timeout bounds the initial TCP connect
	Timeout time.Duration
	// Heartbeat is the interval the client proposes, in seconds. 0 leaves the choice to the broker.
	Heartbeat uint16
	FrameMax  uint32
	// ChannelMax 0 means no client side limit
	ChannelMax uint16

	AuthMechanism string
	Locale        string

	SSL       bool
	TLSConfig *tls.Config
	// Proxy is an optional socks5:// URL the TCP connection is dialed through
	Proxy string

	AutoRecovery     bool
	ClientProperties map[string]interface{}

	// OnTCPConnectionFailure is called when the first TCP connect attempt fails
	OnTCPConnectionFailure func(s Settings, err error)
	// OnPossibleAuthenticationFailure is called when the broker drops the
	// connection during the handshake, which usually means bad credentials
	OnPossibleAuthenticationFailure func(s Settings)
}

// DefaultSettings returns the settings used for every unset field
func DefaultSettings() Settings {
	return Settings{
		Host:          DefaultHost,
		Port:          DefaultPort,
		VHost:         DefaultVHost,
		User:          DefaultUser,
		Password:      DefaultPassword,
		Timeout:       DefaultTimeout,
		FrameMax:      DefaultFrameMax,
		AuthMechanism: AuthPlain,
		Locale:        DefaultLocale,
	}
}

// WithDefaults returns a copy of s with every zero field filled from DefaultSettings
func (s Settings) WithDefaults() (Settings, error) {
	if s.Port == 0 && s.SSL {
		s.Port = DefaultTLSPort
	}
	if err := mergo.Merge(&s, DefaultSettings()); err != nil {
		return s, fmt.Errorf("applying default settings: %w", err)
	}
	return s, nil
}

// Validate ensures the settings can be used to connect
func (s Settings) Validate() error {
	if s.Host == "" {
		return fmt.Errorf("host not specified")
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port %d out of range", s.Port)
	}
	if s.FrameMax != 0 && s.FrameMax < frameMinSize {
		return fmt.Errorf("frame_max %d below the protocol minimum of %d", s.FrameMax, frameMinSize)
	}
	if s.AuthMechanism == "" {
		return fmt.Errorf("auth mechanism not specified")
	}
	if s.Proxy != "" {
		u, err := url.Parse(s.Proxy)
		if err != nil {
			return fmt.Errorf("invalid proxy URL: %w", err)
		}
		if u.Scheme != "socks5" && u.Scheme != "socks5h" {
			return fmt.Errorf("unsupported proxy scheme: %s", u.Scheme)
		}
	}
	return nil
}

// Addr returns host:port
func (s Settings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ParseURI parses an amqp:// or amqps:// URI into settings.
// Omitted parts are left zero so WithDefaults can fill them.
func ParseURI(uri string) (Settings, error) {
	var s Settings

	u, err := url.Parse(uri)
	if err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "amqp":
	case "amqps":
		s.SSL = true
	default:
		return s, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURI, u.Scheme)
	}

	s.Host = u.Hostname()
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return s, fmt.Errorf("%w: port %q", ErrInvalidURI, p)
		}
		s.Port = port
	}

	if u.User != nil {
		s.User = u.User.Username()
		if pass, ok := u.User.Password(); ok {
			s.Password = pass
		}
	}

	// url.Parse already unescapes the path, so %2f becomes "/"
	if vhost := strings.TrimPrefix(u.Path, "/"); vhost != "" {
		s.VHost = vhost
	}

	if err := s.applyQuery(u.Query()); err != nil {
		return s, err
	}
	return s, nil
}

func (s *Settings) applyQuery(q url.Values) error {
	for key, values := range q {
		if len(values) == 0 {
			continue
		}
		v := values[0]

		switch key {
		case "heartbeat", "heartbeat_interval":
			n, err := strconv.ParseUint(v, 10, 16)
			if err != nil {
				return fmt.Errorf("%w: %s=%q", ErrInvalidURI, key, v)
			}
			s.Heartbeat = uint16(n)
		case "frame_max":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("%w: %s=%q", ErrInvalidURI, key, v)
			}
			s.FrameMax = uint32(n)
		case "channel_max":
			n, err := strconv.ParseUint(v, 10, 16)
			if err != nil {
				return fmt.Errorf("%w: %s=%q", ErrInvalidURI, key, v)
			}
			s.ChannelMax = uint16(n)
		case "connection_timeout":
			ms, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("%w: %s=%q", ErrInvalidURI, key, v)
			}
			s.Timeout = time.Duration(ms) * time.Millisecond
		case "auth_mechanism":
			s.AuthMechanism = strings.ToUpper(v)
		case "locale":
			s.Locale = v
		case "auto_recovery":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: %s=%q", ErrInvalidURI, key, v)
			}
			s.AutoRecovery = b
		case "user", "username":
			s.User = v
		case "pass", "password":
			s.Password = v
		case "proxy":
			s.Proxy = v
		}
	}
	return nil
}
