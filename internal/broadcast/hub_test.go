package broadcast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/adammasjid/ProjectTest/internal/domain"
	"github.com/adammasjid/ProjectTest/internal/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeStore is an in-memory SnapshotFetcher that records fetch order.
type fakeStore struct {
	mu        sync.Mutex
	questions map[int]*domain.Question
	calls     []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{questions: make(map[int]*domain.Question)}
}

func (s *fakeStore) put(q *domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[q.ID] = q
}

func (s *fakeStore) FetchQuestion(_ context.Context, questionID int) (*domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "fetch")
	q, ok := s.questions[questionID]
	if !ok {
		return nil, domain.ErrQuestionNotFound
	}
	return q, nil
}

// fakeCache records invalidations into the same ordered log as the store.
type fakeCache struct {
	store   *fakeStore
	removed []int
}

func (c *fakeCache) Remove(questionID int) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.calls = append(c.store.calls, "remove")
	c.removed = append(c.removed, questionID)
}

// testHub wires a Hub behind a websocket test server. The dial function
// returns the client side of a connection plus its server-side Conn handle.
func testHub(t *testing.T, store *fakeStore) (*Hub, *fakeCache, func() (*ws.Conn, *Conn)) {
	t.Helper()

	cache := &fakeCache{store: store}
	registry := NewRegistry()
	hub := NewHub(store, cache, registry, clockwork.NewRealClock(), 2*time.Second)

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	connCh := make(chan *Conn, 16)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		conn := NewConn(wsConn, clockwork.NewRealClock())
		connCh <- conn

		// Read loop so pongs and disconnects are noticed.
		go func() {
			defer hub.ConnectionClosed(conn)
			for {
				if _, _, err := wsConn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	t.Cleanup(server.Close)

	dial := func() (*ws.Conn, *Conn) {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http")
		client, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		conn := <-connCh
		t.Cleanup(func() {
			conn.Close()
			client.Close()
		})
		return client, conn
	}

	return hub, cache, dial
}

func readPush(t *testing.T, client *ws.Conn) protocol.Message {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	msg, err := protocol.Decode(data)
	require.NoError(t, err)
	return msg
}

func TestHub_SendTimeoutConfigurable(t *testing.T) {
	hub := NewHub(nil, nil, nil, clockwork.NewRealClock(), 750*time.Millisecond)
	assert.Equal(t, 750*time.Millisecond, hub.sendTimeout)

	hub = NewHub(nil, nil, nil, clockwork.NewRealClock(), 0)
	assert.Equal(t, defaultSendTimeout, hub.sendTimeout)
}

func TestHub_QuestionWrittenBroadcastsFreshSnapshot(t *testing.T) {
	store := newFakeStore()
	hub, _, dial := testHub(t, store)

	client, conn := dial()
	hub.Subscribe(42, conn)

	store.put(&domain.Question{ID: 42, Title: "fresh", Answers: []domain.Answer{{ID: 1, Content: "first"}}})
	hub.QuestionWritten(context.Background(), 42)

	msg := readPush(t, client)
	assert.Equal(t, protocol.TypeQuestionUpdated, msg.Type)
	assert.Equal(t, 42, msg.QuestionID)
	require.NotNil(t, msg.Question)
	assert.Equal(t, "fresh", msg.Question.Title)
	require.Len(t, msg.Question.Answers, 1)
	assert.Equal(t, "first", msg.Question.Answers[0].Content)
}

func TestHub_InvalidatesCacheBeforeFetching(t *testing.T) {
	store := newFakeStore()
	store.put(&domain.Question{ID: 7})
	hub, cache, _ := testHub(t, store)

	hub.QuestionWritten(context.Background(), 7)

	assert.Equal(t, []string{"remove", "fetch"}, store.calls)
	assert.Equal(t, []int{7}, cache.removed)
}

func TestHub_BroadcastReachesEveryMember(t *testing.T) {
	store := newFakeStore()
	store.put(&domain.Question{ID: 42, Title: "to all"})
	hub, _, dial := testHub(t, store)

	clientA, connA := dial()
	clientB, connB := dial()
	hub.Subscribe(42, connA)
	hub.Subscribe(42, connB)

	hub.QuestionWritten(context.Background(), 42)

	for _, client := range []*ws.Conn{clientA, clientB} {
		msg := readPush(t, client)
		assert.Equal(t, protocol.TypeQuestionUpdated, msg.Type)
		assert.Equal(t, "to all", msg.Question.Title)
	}
}

func TestHub_FailedDeliveryIsIsolatedAndDropsMember(t *testing.T) {
	store := newFakeStore()
	store.put(&domain.Question{ID: 42, Title: "survivor"})
	hub, _, dial := testHub(t, store)

	liveClient, liveConn := dial()
	_, deadConn := dial()
	hub.Subscribe(42, liveConn)
	hub.Subscribe(42, deadConn)

	// Tear down the writer so delivery to this member fails immediately.
	deadConn.Close()

	hub.QuestionWritten(context.Background(), 42)

	msg := readPush(t, liveClient)
	assert.Equal(t, "survivor", msg.Question.Title)

	members := hub.registry.MembersOf(42)
	require.Len(t, members, 1)
	assert.Equal(t, liveConn.ID(), members[0].ID())
}

func TestHub_RefetchNotFoundPushesDeletion(t *testing.T) {
	store := newFakeStore()
	hub, _, dial := testHub(t, store)

	client, conn := dial()
	hub.Subscribe(42, conn)

	// Nothing stored under 42: the post-write fetch reports NotFound.
	hub.QuestionWritten(context.Background(), 42)

	msg := readPush(t, client)
	assert.Equal(t, protocol.TypeQuestionDeleted, msg.Type)
	assert.Equal(t, 42, msg.QuestionID)
}

func TestHub_QuestionDeletedInvalidatesAndNotifies(t *testing.T) {
	store := newFakeStore()
	hub, cache, dial := testHub(t, store)

	client, conn := dial()
	hub.Subscribe(42, conn)

	hub.QuestionDeleted(context.Background(), 42)

	assert.Equal(t, []int{42}, cache.removed)
	msg := readPush(t, client)
	assert.Equal(t, protocol.TypeQuestionDeleted, msg.Type)
}

func TestHub_NoPushAfterUnsubscribe(t *testing.T) {
	store := newFakeStore()
	store.put(&domain.Question{ID: 42})
	hub, _, dial := testHub(t, store)

	client, conn := dial()
	hub.Subscribe(42, conn)
	hub.Unsubscribe(42, conn)

	hub.QuestionWritten(context.Background(), 42)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := client.ReadMessage()
	assert.Error(t, err, "unsubscribed client must not receive pushes")
}

func TestHub_WritesToSameQuestionKeepOrder(t *testing.T) {
	store := newFakeStore()
	hub, _, dial := testHub(t, store)

	client, conn := dial()
	hub.Subscribe(42, conn)

	for i := 1; i <= 5; i++ {
		store.put(&domain.Question{ID: 42, Content: strings.Repeat("x", i)})
		hub.QuestionWritten(context.Background(), 42)
	}

	// Each push carries a snapshot at least as new as the previous one.
	lastLen := 0
	for range 5 {
		msg := readPush(t, client)
		require.Equal(t, protocol.TypeQuestionUpdated, msg.Type)
		assert.GreaterOrEqual(t, len(msg.Question.Content), lastLen)
		lastLen = len(msg.Question.Content)
	}
}
