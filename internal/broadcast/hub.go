package broadcast

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/adammasjid/ProjectTest/internal/domain"
	"github.com/adammasjid/ProjectTest/internal/metrics"
	"github.com/adammasjid/ProjectTest/internal/protocol"
)

const (
	defaultSendTimeout = 2 * time.Second
	entityLockStripes  = 64
)

// SnapshotFetcher is the slice of the data-access contract the hub needs.
type SnapshotFetcher interface {
	FetchQuestion(ctx context.Context, questionID int) (*domain.Question, error)
}

// SnapshotInvalidator is the slice of the snapshot cache the hub needs.
type SnapshotInvalidator interface {
	Remove(questionID int)
}

// Hub sequences cache coherence and broadcast around every completed write,
// and routes subscribe/unsubscribe requests to the registry.
//
// A write for question N proceeds strictly as: remove N from the cache,
// fetch the fresh snapshot, push it to every member of N's group. The cache
// entry is removed rather than overwritten so an in-flight stale read can
// never re-populate it past the invalidation. Writes to the same question
// are serialized on a striped lock, which keeps broadcasts for one question
// in persistence order.
type Hub struct {
	store       SnapshotFetcher
	cache       SnapshotInvalidator
	registry    *Registry
	clock       clockwork.Clock
	sendTimeout time.Duration
	locks       [entityLockStripes]sync.Mutex
}

// NewHub creates the hub. sendTimeout bounds one push delivery attempt to a
// member; zero or negative falls back to the default.
func NewHub(store SnapshotFetcher, cache SnapshotInvalidator, registry *Registry, clock clockwork.Clock, sendTimeout time.Duration) *Hub {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Hub{
		store:       store,
		cache:       cache,
		registry:    registry,
		clock:       clock,
		sendTimeout: sendTimeout,
	}
}

// QuestionWritten must be called exactly once per completed create, update
// or answer-append, after persistence is confirmed.
func (h *Hub) QuestionWritten(ctx context.Context, questionID int) {
	lock := h.entityLock(questionID)
	lock.Lock()
	defer lock.Unlock()

	h.cache.Remove(questionID)

	question, err := h.store.FetchQuestion(ctx, questionID)
	if errors.Is(err, domain.ErrQuestionNotFound) {
		// Deleted between write and refetch; tell subscribers it is gone.
		h.pushMessage(questionID, protocol.QuestionDeleted(questionID))
		return
	}
	if err != nil {
		slog.Error("Post-write snapshot fetch failed, skipping broadcast",
			"question_id", questionID, "error", err)
		return
	}

	h.pushMessage(questionID, protocol.QuestionUpdated(question))
}

// QuestionDeleted must be called exactly once per completed delete.
func (h *Hub) QuestionDeleted(ctx context.Context, questionID int) {
	lock := h.entityLock(questionID)
	lock.Lock()
	defer lock.Unlock()

	h.cache.Remove(questionID)
	h.pushMessage(questionID, protocol.QuestionDeleted(questionID))
}

// Subscribe adds conn to the group for questionID.
func (h *Hub) Subscribe(questionID int, conn *Conn) {
	h.registry.Subscribe(questionID, conn)
	slog.Debug("Client subscribed", "question_id", questionID, "conn_id", conn.ID().String())
}

// Unsubscribe removes conn from the group for questionID.
func (h *Hub) Unsubscribe(questionID int, conn *Conn) {
	h.registry.Unsubscribe(questionID, conn)
	slog.Debug("Client unsubscribed", "question_id", questionID, "conn_id", conn.ID().String())
}

// ConnectionClosed removes conn from every group.
func (h *Hub) ConnectionClosed(conn *Conn) {
	h.registry.DropConnection(conn)
}

func (h *Hub) pushMessage(questionID int, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		slog.Error("Failed to encode push", "question_id", questionID, "error", err)
		return
	}
	h.push(questionID, data)
}

// push delivers data to every member of the group. A failed delivery is
// isolated to that member: it is dropped from all groups and its transport
// closed, while delivery to the rest continues.
func (h *Hub) push(questionID int, data []byte) {
	start := h.clock.Now()
	members := h.registry.MembersOf(questionID)

	var failed []*Conn
	for _, conn := range members {
		if err := conn.Send(data, h.sendTimeout); err != nil {
			slog.Warn("Push delivery failed, dropping connection",
				"question_id", questionID, "conn_id", conn.ID().String(), "error", err)
			metrics.HubPushesTotal.WithLabelValues("failed").Inc()
			failed = append(failed, conn)
			continue
		}
		metrics.HubPushesTotal.WithLabelValues("delivered").Inc()
	}

	for _, conn := range failed {
		h.registry.DropConnection(conn)
		conn.CloseGraceful("delivery backlog exceeded")
		metrics.HubDroppedConnectionsTotal.Inc()
	}

	metrics.HubBroadcastDuration.Observe(h.clock.Since(start).Seconds())
}

func (h *Hub) entityLock(questionID int) *sync.Mutex {
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(strconv.Itoa(questionID)))
	return &h.locks[hash.Sum32()%entityLockStripes]
}
