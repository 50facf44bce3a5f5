package audionode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

type eventSink struct {
	mu     sync.Mutex
	events []domain.TrackEvent
}

func (s *eventSink) add(ev domain.TrackEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *eventSink) all() []domain.TrackEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TrackEvent(nil), s.events...)
}

func TestToEvent(t *testing.T) {
	tests := []struct {
		name string
		msg  wsMessage
		want domain.TrackEvent
		ok   bool
	}{
		{
			name: "end",
			msg:  wsMessage{Op: "event", Type: "TrackEndEvent", GuildID: "g", Reason: "finished"},
			want: domain.TrackEvent{Type: domain.EventTrackEnd, GuildID: "g", Reason: domain.EndFinished},
			ok:   true,
		},
		{
			name: "exception",
			msg:  wsMessage{Op: "event", Type: "TrackExceptionEvent", GuildID: "g", Exception: &exceptionDTO{Message: "403"}},
			want: domain.TrackEvent{Type: domain.EventTrackException, GuildID: "g", Message: "403"},
			ok:   true,
		},
		{
			name: "voice kicked",
			msg:  wsMessage{Op: "event", Type: "WebSocketClosedEvent", GuildID: "g", Code: 4014, Reason: "Disconnected."},
			want: domain.TrackEvent{Type: domain.EventSocketClosed, GuildID: "g", Code: 4014, Message: "Disconnected."},
			ok:   true,
		},
		{
			name: "voice reconnectable",
			msg:  wsMessage{Op: "event", Type: "WebSocketClosedEvent", GuildID: "g", Code: 1006},
			ok:   false,
		},
		{
			name: "unknown",
			msg:  wsMessage{Op: "event", Type: "SomethingNew", GuildID: "g"},
			ok:   false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := toEvent(tc.msg)
			require.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestRun_ReceivesEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	headers := make(chan http.Header, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/v4/websocket", func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range []string{
			`{"op":"ready","resumed":false,"sessionId":"abc"}`,
			`{"op":"playerUpdate","guildId":"g","state":{"time":1,"position":1500,"connected":true,"ping":10}}`,
			`{"op":"event","type":"TrackStartEvent","guildId":"g","track":` + trackJSON + `}`,
			`{"op":"event","type":"TrackEndEvent","guildId":"g","track":` + trackJSON + `,"reason":"finished"}`,
		} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		// mantener abierto hasta que el cliente corte
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, "secret")
	sink := &eventSink{}
	c.OnEvent(sink.add)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx, "bot-id")
	}()

	require.Eventually(t, func() bool { return len(sink.all()) == 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, "abc", c.SessionID())
	h := <-headers
	assert.Equal(t, "secret", h.Get("Authorization"))
	assert.Equal(t, "bot-id", h.Get("User-Id"))
	assert.True(t, strings.HasPrefix(h.Get("Client-Name"), "alpine-bot"))

	evs := sink.all()
	assert.Equal(t, domain.EventPlayerUpdate, evs[0].Type)
	assert.Equal(t, 1500*time.Millisecond, evs[0].Position)
	assert.Equal(t, domain.EventTrackStart, evs[1].Type)
	require.NotNil(t, evs[1].Track)
	assert.Equal(t, "One More Time", evs[1].Track.Title)
	assert.Equal(t, domain.EndFinished, evs[2].Reason)
}

func TestReady_LostSessionClosesVoice(t *testing.T) {
	c := New("http://127.0.0.1:1", "secret")
	sink := &eventSink{}
	c.OnEvent(sink.add)
	c.sessionID = "old"
	c.voice["g"] = &voiceState{sessionID: "v"}

	c.ready("new", false)

	evs := sink.all()
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventSocketClosed, evs[0].Type)
	assert.Equal(t, "g", evs[0].GuildID)
	assert.Equal(t, "new", c.SessionID())
}

func TestWSURL(t *testing.T) {
	c := New("https://node.example:2333/", "x")
	u, err := c.wsURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://node.example:2333/v4/websocket", u)
}
