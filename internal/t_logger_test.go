package internal

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/aleybovich/carrot-amqp/config"
	"github.com/aleybovich/carrot-amqp/logger"
	"github.com/aleybovich/carrot-amqp/protocol"
)

// MockLogger implements the Logger interface for testing
type MockLogger struct {
	logs     map[string][]string // key is log level, value is array of log entries
	mu       sync.Mutex
	t        *testing.T
	logCount int // total log entries count
}

// NewMockLogger creates a new MockLogger for testing
func NewMockLogger(t *testing.T) *MockLogger {
	return &MockLogger{
		logs: map[string][]string{
			"fatal": {},
			"error": {},
			"warn":  {},
			"info":  {},
			"debug": {},
		},
		t: t,
	}
}

func (m *MockLogger) Fatal(format string, a ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := fmt.Sprintf(format, a...)
	m.logs["fatal"] = append(m.logs["fatal"], msg)
	m.logCount++
	m.t.Logf("MOCK-FATAL: %s", msg)
}

func (m *MockLogger) Err(format string, a ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := fmt.Sprintf(format, a...)
	m.logs["error"] = append(m.logs["error"], msg)
	m.logCount++
	m.t.Logf("MOCK-ERROR: %s", msg)
}

func (m *MockLogger) Warn(format string, a ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := fmt.Sprintf(format, a...)
	m.logs["warn"] = append(m.logs["warn"], msg)
	m.logCount++
	m.t.Logf("MOCK-WARN: %s", msg)
}

func (m *MockLogger) Info(format string, a ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := fmt.Sprintf(format, a...)
	m.logs["info"] = append(m.logs["info"], msg)
	m.logCount++
	m.t.Logf("MOCK-INFO: %s", msg)
}

func (m *MockLogger) Debug(format string, a ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := fmt.Sprintf(format, a...)
	m.logs["debug"] = append(m.logs["debug"], msg)
	m.logCount++
	m.t.Logf("MOCK-DEBUG: %s", msg)
}

// Contains checks if any log message at the specified level contains the given substr
func (m *MockLogger) Contains(level, substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	logs, ok := m.logs[level]
	if !ok {
		return false
	}

	for _, msg := range logs {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// Count returns the number of log messages at the specified level
func (m *MockLogger) Count(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs[level])
}

// TotalCount returns the total number of log messages
func (m *MockLogger) TotalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logCount
}

func TestCustomLogger(t *testing.T) {
	mockLogger := NewMockLogger(t)

	c, err := NewConnection(testSettings(), WithLogger(mockLogger))
	if err != nil {
		t.Fatalf("NewConnection: %v", err)
	}
	if c.Logger() != mockLogger {
		t.Errorf("Connection did not set custom logger correctly, got %T, want %T", c.Logger(), mockLogger)
	}

	t.Run("Handshake is logged", func(t *testing.T) {
		prevCount := mockLogger.TotalCount()

		b := &fakeBroker{t: t, c: c, tr: &fakeTransport{}, log: mockLogger, tune: protocol.ConnectionTune{ChannelMax: 10, FrameMax: 4096}}
		b.open()

		if mockLogger.TotalCount() == prevCount {
			t.Errorf("Expected handshake log messages")
		}
		if !mockLogger.Contains("info", "TCP connection to 127.0.0.1:5672 established") {
			t.Errorf("No info log for the TCP connection")
		}
		if !mockLogger.Contains("info", "opened") {
			t.Errorf("No info log for open-ok")
		}
	})

	t.Run("Unknown channel is a warning", func(t *testing.T) {
		prevWarn := mockLogger.Count("warn")
		b := &fakeBroker{t: t, c: c, tr: &fakeTransport{}, log: mockLogger}
		b.send(9, &protocol.QueueDeclareOk{Queue: "nobody"})

		if mockLogger.Count("warn") != prevWarn+1 {
			t.Errorf("Expected one warning, got %d", mockLogger.Count("warn")-prevWarn)
		}
		if !mockLogger.Contains("warn", "unknown channel 9") {
			t.Errorf("Warning does not name the channel")
		}
	})
}

func TestDisableLogging(t *testing.T) {
	mockLogger := NewMockLogger(t)
	_, err := NewConnection(testSettings(), WithLoggingConfig(config.LoggingConfig{DisableLogging: true, CustomLogger: mockLogger}))
	if err == nil {
		t.Fatalf("Expected an error when both a custom logger and disabled logging are configured")
	}

	c, err := NewConnection(testSettings(), WithLoggingConfig(config.LoggingConfig{DisableLogging: true}))
	if err != nil {
		t.Fatalf("NewConnection: %v", err)
	}
	if _, ok := c.Logger().(*logger.NilLogger); !ok {
		t.Errorf("Expected NilLogger, got %T", c.Logger())
	}
}
