package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"skillswap-backend/internal/middleware"
	"skillswap-backend/internal/middleware/jwttest"
	"skillswap-backend/internal/models"
)

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestHub(t *testing.T) (*Hub, *middleware.JWTAuth, *httptest.Server) {
	t.Helper()
	auth := middleware.NewJWTAuth("hub-secret")
	hub := NewHub(NewRegistry(), auth, nil, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(srv.Close)
	return hub, auth, srv
}

func dial(t *testing.T, srv *httptest.Server, auth *middleware.JWTAuth, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	token := jwttest.Sign(t, auth.Secret, userID, jwttest.AccessTTL)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until match accepts one or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, match func(inbound) bool) inbound {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func onlineUsers(t *testing.T, msg inbound) []uuid.UUID {
	t.Helper()
	var evt models.OnlineUsersEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		t.Fatalf("decode online users: %v", err)
	}
	return evt.UserIDs
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func TestHub_RejectsMissingOrBadToken(t *testing.T) {
	_, _, srv := newTestHub(t)
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	for _, url := range []string{base, base + "?token=garbage"} {
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			t.Fatalf("expected handshake to fail for %s", url)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s", url)
		}
	}
}

func TestHub_ConnectBroadcastsPresenceAndEmitReachesUser(t *testing.T) {
	hub, auth, srv := newTestHub(t)
	userID := uuid.New()
	conn := dial(t, srv, auth, userID)

	msg := readUntil(t, conn, func(m inbound) bool { return m.Type == models.EventOnlineUsers })
	if ids := onlineUsers(t, msg); !contains(ids, userID) {
		t.Fatalf("expected %s in online users, got %v", userID, ids)
	}

	sessionID := uuid.New()
	hub.EmitToUser(userID, models.SessionGoingLiveEvent{SessionID: sessionID, Skill: "Go"})
	hub.EmitToUser(uuid.New(), models.SessionGoingLiveEvent{SessionID: uuid.New()})

	msg = readUntil(t, conn, func(m inbound) bool { return m.Type == models.EventSessionGoingLive })
	var live models.SessionGoingLiveEvent
	if err := json.Unmarshal(msg.Payload, &live); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if live.SessionID != sessionID || live.Skill != "Go" {
		t.Fatalf("unexpected payload: %+v", live)
	}
}

func TestHub_DisconnectRebroadcastsPresence(t *testing.T) {
	hub, auth, srv := newTestHub(t)
	alice, bob := uuid.New(), uuid.New()

	aliceConn := dial(t, srv, auth, alice)
	readUntil(t, aliceConn, func(m inbound) bool { return m.Type == models.EventOnlineUsers })

	bobConn := dial(t, srv, auth, bob)
	readUntil(t, aliceConn, func(m inbound) bool {
		return m.Type == models.EventOnlineUsers && contains(onlineUsers(t, m), bob)
	})

	bobConn.Close()
	readUntil(t, aliceConn, func(m inbound) bool {
		return m.Type == models.EventOnlineUsers && !contains(onlineUsers(t, m), bob)
	})

	deadline := time.Now().Add(2 * time.Second)
	for hub.registry.IsOnline(bob) {
		if time.Now().After(deadline) {
			t.Fatalf("bob still registered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_EventsArriveInEmissionOrder(t *testing.T) {
	hub, auth, srv := newTestHub(t)
	userID := uuid.New()
	conn := dial(t, srv, auth, userID)
	readUntil(t, conn, func(m inbound) bool { return m.Type == models.EventOnlineUsers })

	ids := make([]uuid.UUID, 20)
	for i := range ids {
		ids[i] = uuid.New()
		hub.EmitToUser(userID, models.SessionGoingLiveEvent{SessionID: ids[i]})
	}

	for i, want := range ids {
		msg := readUntil(t, conn, func(m inbound) bool { return m.Type == models.EventSessionGoingLive })
		var live models.SessionGoingLiveEvent
		if err := json.Unmarshal(msg.Payload, &live); err != nil {
			t.Fatalf("decode event %d: %v", i, err)
		}
		if live.SessionID != want {
			t.Fatalf("event %d out of order", i)
		}
	}
}

func TestHub_ConcurrentConnectsLeaveEveryClientWithFullPresence(t *testing.T) {
	const clients = 16

	for run := 0; run < 200; run++ {
		hub := NewHub(NewRegistry(), middleware.NewJWTAuth("hub-secret"), nil, zap.NewNop())

		all := make([]*Client, clients)
		for i := range all {
			all[i] = newClient(uuid.New(), nil)
		}

		var wg sync.WaitGroup
		for _, c := range all {
			wg.Add(1)
			go func(c *Client) {
				defer wg.Done()
				hub.registry.Register(c)
				hub.broadcastOnlineUsers()
			}(c)
		}
		wg.Wait()

		for i, c := range all {
			var last []byte
			for len(c.send) > 0 {
				last = <-c.send
			}
			if last == nil {
				t.Fatalf("run %d: client %d received no presence update", run, i)
			}
			var msg inbound
			if err := json.Unmarshal(last, &msg); err != nil {
				t.Fatalf("run %d: decode: %v", run, err)
			}
			if got := onlineUsers(t, msg); len(got) != clients {
				t.Fatalf("run %d: client %d last saw %d online users, want %d", run, i, len(got), clients)
			}
		}
	}
}
