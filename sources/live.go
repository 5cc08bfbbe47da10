package sources

import (
	"strconv"
	"sync"
	"sync/atomic"

	u "github.com/araddon/gou"

	"github.com/IroiKanta/StarryEyes/expr"
	"github.com/IroiKanta/StarryEyes/model"
	"github.com/IroiKanta/StarryEyes/receive"
	"github.com/IroiKanta/StarryEyes/rel"
	"github.com/IroiKanta/StarryEyes/value"
)

const (
	SearchKey = "search"
	TrackKey  = "track"
)

var (
	_ rel.Source   = (*Live)(nil)
	_ receive.Sink = (*Live)(nil)
)

// Live is a source fed by the receive subsystem. Ids pushed while active are
// remembered in an accept cache the predicate reads. The cache only grows,
// deactivation stops new ids but keeps those already accepted.
//
// The SQL form is always false: the store cannot see the push cache, so
// store queries never match live source items.
type Live struct {
	key   string
	query string
	recv  receive.Receiver

	accepted *value.SyncIDSet
	active   atomic.Bool

	// serializes Activate/Deactivate, never held by Accept
	lifecycle sync.Mutex
	// shared by Accept, exclusive while active flips: once Deactivate
	// returns no in-flight push can still add an id
	gate sync.RWMutex
}

// NewSearch binds a keyword search, ie search:"golang".
func NewSearch(query string, recv receive.Receiver) *Live {
	return newLive(SearchKey, query, recv)
}

// NewTrack binds a streaming keyword track, ie track:"golang".
func NewTrack(keyword string, recv receive.Receiver) *Live {
	return newLive(TrackKey, keyword, recv)
}

func newLive(key, query string, recv receive.Receiver) *Live {
	return &Live{key: key, query: query, recv: recv, accepted: value.NewSyncIDSet()}
}

func (m *Live) FilterKey() string           { return m.key }
func (m *Live) FilterValue() string         { return m.query }
func (m *Live) SupportedTypes() value.Kinds { return value.NewKinds(value.BooleanKind) }
func (m *Live) ToQuery() string             { return m.key + ":" + strconv.Quote(m.query) }
func (m *Live) IsActive() bool              { return m.active.Load() }

// Accepted is the current accept cache.
func (m *Live) Accepted() value.IDSet { return m.accepted }

// Accept is the push callback. Ids arriving while inactive are dropped.
func (m *Live) Accept(id int64) {
	m.gate.RLock()
	defer m.gate.RUnlock()
	if !m.active.Load() {
		return
	}
	m.accepted.Add(id)
}

func (m *Live) setActive(active bool) {
	m.gate.Lock()
	m.active.Store(active)
	m.gate.Unlock()
}

func (m *Live) Activate() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	if m.active.Load() {
		return
	}
	m.setActive(true)
	u.Debugf("activating %s", m.ToQuery())
	m.recv.RegisterLiveQuery(m.query, m)
}

func (m *Live) Deactivate() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	if !m.active.Load() {
		return
	}
	m.setActive(false)
	u.Debugf("deactivating %s accepted=%d", m.ToQuery(), m.accepted.Len())
	m.recv.UnregisterLiveQuery(m.query, m)
}

func (m *Live) BooleanEvaluator() (expr.BoolFunc, error) {
	accepted := m.accepted
	return func(s *model.Status) bool { return accepted.Contains(s.ID) }, nil
}

func (m *Live) BooleanSQL() (string, error) { return expr.SQLFalse, nil }
