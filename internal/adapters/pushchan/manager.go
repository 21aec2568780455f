// Package pushchan maintains the tenant room subscriptions on the push
// channel and turns server-pushed invalidation events into refresh signals.
package pushchan

import (
	"sync"
	"time"

	"github.com/merchkit/storesync/internal/core/domain"
	"github.com/merchkit/storesync/internal/core/ports"
)

// RoomState is the lifecycle state of one tenant room.
type RoomState int

const (
	RoomDisconnected RoomState = iota
	RoomJoining
	RoomJoined
	RoomLeaving
)

// Manager keeps at most one tenant room joined at a time. Joining is
// intentionally delayed after a tenant becomes active so rapid navigation
// between tenants does not churn join/leave pairs; leaving happens
// synchronously when the active tenant changes. Joins and leaves are keyed
// by tenant id, never ordered globally: a late leave for tenant A cannot
// cancel an already-scheduled join for tenant B.
type Manager struct {
	transport ports.PushTransport
	logger    ports.Logger
	joinDelay time.Duration
	sink      func(domain.RefreshSignal)

	mu         sync.Mutex
	active     string
	states     map[string]RoomState
	joinTimers map[string]*time.Timer
	cancelSub  func()
	closed     bool
}

// NewManager creates a manager and subscribes to the transport's change
// events. The sink receives one refresh signal per accepted event.
func NewManager(transport ports.PushTransport, logger ports.Logger, joinDelay time.Duration, sink func(domain.RefreshSignal)) *Manager {
	m := &Manager{
		transport:  transport,
		logger:     logger,
		joinDelay:  joinDelay,
		sink:       sink,
		states:     make(map[string]RoomState),
		joinTimers: make(map[string]*time.Timer),
	}
	m.cancelSub = transport.Subscribe(m.handleEvent)
	return m
}

// SetActiveTenant switches the subscription target. The old room is left
// synchronously; the new room is joined after the configured delay.
func (m *Manager) SetActiveTenant(tenantID string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	old := m.active
	if old == tenantID {
		m.mu.Unlock()
		return
	}
	m.active = tenantID

	// A pending delayed join for the old tenant is simply dropped.
	if timer, ok := m.joinTimers[old]; ok {
		timer.Stop()
		delete(m.joinTimers, old)
	}

	leaveOld := old != "" && m.states[old] == RoomJoined
	if leaveOld {
		m.states[old] = RoomLeaving
	}

	if tenantID != "" {
		tid := tenantID
		m.joinTimers[tid] = time.AfterFunc(m.joinDelay, func() { m.join(tid) })
	}
	m.mu.Unlock()

	if leaveOld {
		m.leave(old)
	}
}

// State reports the room state for a tenant.
func (m *Manager) State(tenantID string) RoomState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[tenantID]
}

// Close drops the event subscription, cancels pending joins and leaves the
// active room.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for tenant, timer := range m.joinTimers {
		timer.Stop()
		delete(m.joinTimers, tenant)
	}
	active := m.active
	joined := m.states[active] == RoomJoined
	if joined {
		m.states[active] = RoomLeaving
	}
	cancel := m.cancelSub
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if joined {
		m.leave(active)
	}
	return nil
}

func (m *Manager) join(tenantID string) {
	m.mu.Lock()
	if m.closed || m.active != tenantID {
		delete(m.joinTimers, tenantID)
		m.mu.Unlock()
		return
	}
	delete(m.joinTimers, tenantID)
	m.states[tenantID] = RoomJoining
	m.mu.Unlock()

	if err := m.transport.Join(tenantID); err != nil {
		m.logger.Warn("failed to join tenant room", "tenant", tenantID, "error", err)
		m.setState(tenantID, RoomDisconnected)
		return
	}

	m.mu.Lock()
	// The active tenant may have moved on while the join was in flight.
	if m.active == tenantID {
		m.states[tenantID] = RoomJoined
		m.mu.Unlock()
		m.logger.Debug("joined tenant room", "tenant", tenantID)
		return
	}
	m.states[tenantID] = RoomLeaving
	m.mu.Unlock()
	m.leave(tenantID)
}

func (m *Manager) leave(tenantID string) {
	if err := m.transport.Leave(tenantID); err != nil {
		m.logger.Warn("failed to leave tenant room", "tenant", tenantID, "error", err)
	}
	m.setState(tenantID, RoomDisconnected)
}

func (m *Manager) setState(tenantID string, state RoomState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state == RoomDisconnected {
		delete(m.states, tenantID)
		return
	}
	m.states[tenantID] = state
}

// handleEvent filters change events down to the active tenant and forwards
// the rest as refresh signals. A client is never interested in another
// tenant's mutations while viewing a different one.
func (m *Manager) handleEvent(ev domain.ChangeEvent) {
	m.mu.Lock()
	active := m.active
	closed := m.closed
	m.mu.Unlock()

	if closed || ev.TenantID == "" || ev.TenantID != active {
		m.logger.Debug("dropping change event for inactive tenant", "tenant", ev.TenantID, "kind", string(ev.Kind))
		return
	}
	m.sink(domain.RefreshSignal{Kind: ev.Kind, TenantID: ev.TenantID})
}
