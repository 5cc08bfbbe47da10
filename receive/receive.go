// Package receive is the boundary to the network receive subsystem. Live
// sources register a query parameter and a sink, the subsystem pushes the
// ids of matching items into the sink from any goroutine.
package receive

import (
	"sync"

	u "github.com/araddon/gou"
	"github.com/pborman/uuid"

	"github.com/IroiKanta/StarryEyes/model"
)

type (
	// Sink receives ids of items matching a live query. Sinks are compared
	// on unregister so they must be comparable, usually a pointer.
	Sink interface {
		Accept(id int64)
	}

	// Receiver starts and stops live queries. Implementations must return
	// without blocking on the network.
	Receiver interface {
		RegisterLiveQuery(param string, sink Sink)
		UnregisterLiveQuery(param string, sink Sink)
	}
)

var _ Receiver = (*Hub)(nil)

// Hub is an in-process Receiver fanning pushed ids out to every sink
// registered under a parameter. The transport feeding it is external.
type Hub struct {
	name string

	mu    sync.RWMutex
	sinks map[string]map[Sink]string
}

// NewHub creates a Hub, name is used in log lines only (ie "search").
func NewHub(name string) *Hub {
	return &Hub{name: name, sinks: make(map[string]map[Sink]string)}
}

func (m *Hub) RegisterLiveQuery(param string, sink Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.sinks[param]
	if !ok {
		reg = make(map[Sink]string)
		m.sinks[param] = reg
	}
	if _, exists := reg[sink]; exists {
		return
	}
	token := uuid.NewRandom().String()
	reg[sink] = token
	u.Debugf("%s: registered live query %q token=%s", m.name, param, token)
}

func (m *Hub) UnregisterLiveQuery(param string, sink Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.sinks[param]
	if !ok {
		return
	}
	if token, exists := reg[sink]; exists {
		delete(reg, sink)
		u.Debugf("%s: unregistered live query %q token=%s", m.name, param, token)
	}
	if len(reg) == 0 {
		delete(m.sinks, param)
	}
}

// Push delivers ids to every sink registered under param. Sinks are called
// without the hub lock held so they may unregister themselves.
func (m *Hub) Push(param string, ids ...int64) int {
	m.mu.RLock()
	reg := m.sinks[param]
	sinks := make([]Sink, 0, len(reg))
	for s := range reg {
		sinks = append(sinks, s)
	}
	m.mu.RUnlock()

	for _, s := range sinks {
		for _, id := range ids {
			s.Accept(id)
		}
	}
	return len(sinks)
}

// PushStatus delivers the status id under every registered parameter match
// reports true for, ie a keyword tracker matching text.
func (m *Hub) PushStatus(s *model.Status, match func(param string, s *model.Status) bool) {
	for _, p := range m.Params() {
		if match(p, s) {
			m.Push(p, s.ID)
		}
	}
}

// Params lists the parameters with at least one sink.
func (m *Hub) Params() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	params := make([]string, 0, len(m.sinks))
	for p := range m.sinks {
		params = append(params, p)
	}
	return params
}

// Registrations is the number of sinks registered under param.
func (m *Hub) Registrations(param string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sinks[param])
}
