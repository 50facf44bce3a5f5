package audionode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

// Códigos de cierre del websocket de voz de Discord tras los cuales el bot
// ya no está en el canal. El resto los reconecta el propio nodo.
var fatalVoiceCodes = map[int]bool{
	4004: true, // authentication failed
	4006: true, // session no longer valid
	4014: true, // disconnected (kick, canal borrado)
}

// Run mantiene el websocket contra el nodo hasta que ctx se cancele,
// reconectando con backoff exponencial.
func (c *Client) Run(ctx context.Context, userID string) error {
	backoff := c.backoffBase
	for {
		connected, err := c.connectOnce(ctx, userID)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = c.backoffBase
		}
		c.log.Warn("websocket del nodo caído", zap.Error(err), zap.Duration("retry_in", backoff))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil
		}
		backoff = min(backoff*2, c.backoffMax)
	}
}

func (c *Client) wsURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v4/websocket"
	return u.String(), nil
}

func (c *Client) connectOnce(ctx context.Context, userID string) (bool, error) {
	wsu, err := c.wsURL()
	if err != nil {
		return false, fmt.Errorf("websocket url: %w", err)
	}
	h := http.Header{}
	h.Set("Authorization", c.password)
	h.Set("User-Id", userID)
	h.Set("Client-Name", clientName)
	if sid := c.SessionID(); sid != "" {
		h.Set("Session-Id", sid)
	}

	conn, _, err := c.dialer.DialContext(ctx, wsu, h)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	c.log.Info("conectado al nodo de audio", zap.String("url", wsu))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Debug("mensaje ilegible del nodo", zap.Error(err))
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg wsMessage) {
	switch msg.Op {
	case "ready":
		c.ready(msg.SessionID, msg.Resumed)
	case "playerUpdate":
		if msg.State == nil {
			return
		}
		c.emit(domain.TrackEvent{
			Type:     domain.EventPlayerUpdate,
			GuildID:  msg.GuildID,
			Position: time.Duration(msg.State.Position) * time.Millisecond,
		})
	case "event":
		if ev, ok := toEvent(msg); ok {
			c.emit(ev)
		}
	case "stats":
	default:
		c.log.Debug("op desconocido", zap.String("op", msg.Op))
	}
}

func (c *Client) ready(sid string, resumed bool) {
	c.mu.Lock()
	prev := c.sessionID
	c.sessionID = sid
	var lost []string
	if prev != "" && !resumed {
		// el nodo arrancó de cero: los players viejos ya no existen
		for g := range c.voice {
			lost = append(lost, g)
		}
		c.voice = map[string]*voiceState{}
	}
	c.mu.Unlock()

	c.log.Info("nodo listo", zap.String("session", sid), zap.Bool("resumed", resumed))
	for _, g := range lost {
		c.emit(domain.TrackEvent{Type: domain.EventSocketClosed, GuildID: g, Message: "audio node session lost"})
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.configureResuming(ctx, sid); err != nil {
			c.log.Warn("configurar resuming", zap.Error(err))
		}
		if !resumed {
			c.resendVoice()
		}
	}()
}

func toEvent(msg wsMessage) (domain.TrackEvent, bool) {
	ev := domain.TrackEvent{GuildID: msg.GuildID}
	if msg.Track != nil {
		t := msg.Track.toDomain()
		ev.Track = &t
	}
	switch msg.Type {
	case "TrackStartEvent":
		ev.Type = domain.EventTrackStart
	case "TrackEndEvent":
		ev.Type = domain.EventTrackEnd
		ev.Reason = domain.EndReason(msg.Reason)
	case "TrackExceptionEvent":
		ev.Type = domain.EventTrackException
		if msg.Exception != nil {
			ev.Message = msg.Exception.Message
		}
	case "TrackStuckEvent":
		ev.Type = domain.EventTrackStuck
		ev.Message = fmt.Sprintf("stuck for %dms", msg.ThresholdMs)
	case "WebSocketClosedEvent":
		if !fatalVoiceCodes[msg.Code] {
			return ev, false
		}
		ev.Type = domain.EventSocketClosed
		ev.Code = msg.Code
		ev.Message = msg.Reason
	default:
		return ev, false
	}
	return ev, true
}

func (c *Client) emit(ev domain.TrackEvent) {
	c.mu.RLock()
	fn := c.onEvent
	c.mu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}
