package broadcast

import (
	"sync"

	"github.com/google/uuid"

	"github.com/adammasjid/ProjectTest/internal/metrics"
)

// Registry tracks, per question, the set of subscribed connections. All
// operations are idempotent and safe for concurrent use; a single mutex
// guards both the groups and the reverse index.
type Registry struct {
	mu sync.Mutex
	// groups maps question ID to the connections subscribed to it.
	groups map[int]map[uuid.UUID]*Conn
	// memberships is the reverse index, so dropping a connection does not
	// require scanning every group.
	memberships map[uuid.UUID]map[int]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		groups:      make(map[int]map[uuid.UUID]*Conn),
		memberships: make(map[uuid.UUID]map[int]struct{}),
	}
}

// Subscribe adds conn to the group for questionID. Subscribing twice with
// the same connection leaves membership unchanged.
func (r *Registry) Subscribe(questionID int, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.groups[questionID]
	if !ok {
		group = make(map[uuid.UUID]*Conn)
		r.groups[questionID] = group
	}
	if _, member := group[conn.ID()]; member {
		return
	}
	group[conn.ID()] = conn

	ids, ok := r.memberships[conn.ID()]
	if !ok {
		ids = make(map[int]struct{})
		r.memberships[conn.ID()] = ids
	}
	ids[questionID] = struct{}{}

	metrics.HubActiveSubscriptions.Inc()
}

// Unsubscribe removes conn from the group for questionID. A no-op if conn
// is not a member.
func (r *Registry) Unsubscribe(questionID int, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(questionID, conn.ID())
}

// DropConnection removes conn from every group it belongs to. Used on
// disconnect so a dead connection can never retain membership.
func (r *Registry) DropConnection(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for questionID := range r.memberships[conn.ID()] {
		r.removeLocked(questionID, conn.ID())
	}
}

// MembersOf returns a snapshot copy of the group for questionID, safe to
// iterate while memberships change concurrently.
func (r *Registry) MembersOf(questionID int) []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	group := r.groups[questionID]
	members := make([]*Conn, 0, len(group))
	for _, conn := range group {
		members = append(members, conn)
	}
	return members
}

func (r *Registry) removeLocked(questionID int, connID uuid.UUID) {
	group, ok := r.groups[questionID]
	if !ok {
		return
	}
	if _, member := group[connID]; !member {
		return
	}

	delete(group, connID)
	if len(group) == 0 {
		delete(r.groups, questionID)
	}

	ids := r.memberships[connID]
	delete(ids, questionID)
	if len(ids) == 0 {
		delete(r.memberships, connID)
	}

	metrics.HubActiveSubscriptions.Dec()
}
