package sim

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rustyeddy/quantsim/pkg/id"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already open")
)

// Arena owns independent brokers, one per session. Sessions share nothing,
// so each can be driven from its own goroutine.
type Arena struct {
	mu       sync.RWMutex
	sessions map[string]*Broker
}

func NewArena() *Arena {
	return &Arena{sessions: make(map[string]*Broker)}
}

// Open creates a session with the given starting cash in cfg.Currency.
func (a *Arena) Open(cfg Config, cash float64) (string, *Broker, error) {
	if cfg.AccountID == "" {
		cfg.AccountID = id.NewSession()
	}
	b := NewBroker(cfg)
	if err := b.Deposit(cfg.Currency, cash); err != nil {
		return "", nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.sessions[cfg.AccountID]; ok {
		return "", nil, fmt.Errorf("%w: %s", ErrSessionExists, cfg.AccountID)
	}
	a.sessions[cfg.AccountID] = b
	return cfg.AccountID, b, nil
}

func (a *Arena) Get(sessionID string) (*Broker, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	b, ok := a.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return b, nil
}

func (a *Arena) Close(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, sessionID)
}

// Sessions lists open session ids in sorted order.
func (a *Arena) Sessions() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.sessions))
	for s := range a.sessions {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
