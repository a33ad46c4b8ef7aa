// Package tunnel defines the capability interface external tunneling
// providers implement, grounded on the chisel tunnel factory's
// listener-lifecycle shape (otterscale-otterscale-agent/internal/
// providers/chisel/tunnel_factory.go: build, start, stop, status) but
// generalized to a provider-agnostic, dependency-free contract so the
// core server never imports a specific tunneling SDK directly.
package tunnel

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Status is a tunnel provider's current lifecycle state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

// Provider is the capability interface a concrete tunneling backend
// (ngrok, cloudflared, chisel, a raw reverse-SSH client) implements.
type Provider interface {
	Name() string
	Start(port int) error
	Stop() error
	GetStatus() (Status, error)
	GetPublicURL() (string, error)
}

// Manager owns the active provider, serializing Start/Stop calls:
// tunnel control is a single administrative switch per server.
type Manager struct {
	mu       sync.Mutex
	provider Provider
	status   Status
	url      string
	lastErr  error
}

// NewManager wraps provider, defaulting to the no-op provider when
// provider is nil (tunneling disabled).
func NewManager(provider Provider) *Manager {
	if provider == nil {
		provider = NoneProvider{}
	}
	return &Manager{provider: provider, status: StatusStopped}
}

// Start starts the tunnel on the given local port.
func (m *Manager) Start(port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusStarting
	if err := m.provider.Start(port); err != nil {
		m.status = StatusFailed
		m.lastErr = err
		return fmt.Errorf("tunnel: start %s: %w", m.provider.Name(), err)
	}
	url, err := m.provider.GetPublicURL()
	if err != nil {
		logrus.WithFields(logrus.Fields{"provider": m.provider.Name(), "error": err}).Warn("tunnel: public URL unavailable yet")
	}
	m.url = url
	m.status = StatusRunning
	return nil
}

// Stop tears the tunnel down.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.provider.Stop(); err != nil {
		return fmt.Errorf("tunnel: stop %s: %w", m.provider.Name(), err)
	}
	m.status = StatusStopped
	m.url = ""
	return nil
}

// StatusReport is the JSON-friendly snapshot the HTTP handler returns.
type StatusReport struct {
	Provider  string `json:"provider"`
	Status    Status `json:"status"`
	PublicURL string `json:"publicUrl,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Report returns the manager's current status snapshot.
func (m *Manager) Report() StatusReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := StatusReport{Provider: m.provider.Name(), Status: m.status, PublicURL: m.url}
	if m.lastErr != nil {
		r.Error = m.lastErr.Error()
	}
	return r
}

// NoneProvider is the default no-op provider used when tunneling is
// disabled by configuration.
type NoneProvider struct{}

func (NoneProvider) Name() string { return "none" }
func (NoneProvider) Start(int) error { return fmt.Errorf("tunnel: no provider configured") }
func (NoneProvider) Stop() error { return nil }
func (NoneProvider) GetStatus() (Status, error) { return StatusStopped, nil }
func (NoneProvider) GetPublicURL() (string, error) { return "", nil }
