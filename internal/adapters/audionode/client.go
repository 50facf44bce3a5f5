package audionode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jose-valero/alpine-bot/internal/app/music"
	"github.com/jose-valero/alpine-bot/internal/domain"
)

const (
	clientName      = "alpine-bot/1.0"
	defaultPrefix   = "ytsearch"
	resumingTimeout = 60 // segundos
)

// Client habla con un nodo Lavalink v4: REST para players y búsquedas,
// websocket para eventos. Implementa music.AudioNode.
type Client struct {
	baseURL      string
	password     string
	http         *http.Client
	dialer       *websocket.Dialer
	log          *zap.Logger
	searchPrefix string
	backoffBase  time.Duration
	backoffMax   time.Duration

	mu        sync.RWMutex
	sessionID string
	voice     map[string]*voiceState
	onEvent   func(domain.TrackEvent)
}

var _ music.AudioNode = (*Client)(nil)

func New(baseURL, password string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		password:     password,
		http:         &http.Client{Timeout: 10 * time.Second},
		dialer:       &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:          zap.NewNop(),
		searchPrefix: defaultPrefix,
		backoffBase:  time.Second,
		backoffMax:   30 * time.Second,
		voice:        map[string]*voiceState{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// OnEvent fija a quién se le entregan los eventos del websocket (Registry.Dispatch).
func (c *Client) OnEvent(fn func(domain.TrackEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = fn
}

// SessionID es el id que mandó el nodo en ready; vacío si no está listo.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

func (c *Client) Ready() bool { return c.SessionID() != "" }

func (c *Client) playerPath(guildID string) (string, error) {
	sid := c.SessionID()
	if sid == "" {
		return "", ErrNotReady
	}
	return fmt.Sprintf("/v4/sessions/%s/players/%s", sid, guildID), nil
}

func (c *Client) patchPlayer(ctx context.Context, guildID string, p playerPatch, q url.Values) error {
	path, err := c.playerPath(guildID)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPatch, path, q, p, nil)
}

// ---- búsqueda ----

// Search resuelve query. Lo que no es URL se busca con el prefijo configurado.
func (c *Client) Search(ctx context.Context, query string) (domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.SearchResult{}, nil
	}
	identifier := query
	if u, err := url.Parse(query); err != nil || u.Scheme == "" || u.Host == "" {
		identifier = c.searchPrefix + ":" + query
	}
	q := url.Values{}
	q.Set("identifier", identifier)

	var dto loadResultDTO
	if err := c.doJSON(ctx, http.MethodGet, "/v4/loadtracks", q, nil, &dto); err != nil {
		return domain.SearchResult{}, err
	}
	return decodeLoad(dto)
}

func decodeLoad(dto loadResultDTO) (domain.SearchResult, error) {
	var res domain.SearchResult
	switch dto.LoadType {
	case "track":
		var t trackDTO
		if err := json.Unmarshal(dto.Data, &t); err != nil {
			return res, fmt.Errorf("decode track: %w", err)
		}
		res.Tracks = []domain.Track{t.toDomain()}
	case "search":
		var list []trackDTO
		if err := json.Unmarshal(dto.Data, &list); err != nil {
			return res, fmt.Errorf("decode search: %w", err)
		}
		for _, t := range list {
			res.Tracks = append(res.Tracks, t.toDomain())
		}
	case "playlist":
		var pl playlistDTO
		if err := json.Unmarshal(dto.Data, &pl); err != nil {
			return res, fmt.Errorf("decode playlist: %w", err)
		}
		res.PlaylistName = pl.Info.Name
		if res.PlaylistName == "" {
			res.PlaylistName = "playlist"
		}
		for _, t := range pl.Tracks {
			res.Tracks = append(res.Tracks, t.toDomain())
		}
	case "empty":
	case "error":
		var ex exceptionDTO
		_ = json.Unmarshal(dto.Data, &ex)
		return res, &LoadError{Message: ex.Message, Severity: ex.Severity}
	default:
		return res, fmt.Errorf("unknown load type %q", dto.LoadType)
	}
	return res, nil
}

// ---- player ----

func (c *Client) Play(ctx context.Context, guildID string, t domain.Track, opts music.PlayOptions) error {
	enc := t.Encoded
	vol := opts.Volume
	paused := opts.Paused
	filters := opts.Filters
	q := url.Values{}
	q.Set("noReplace", "false")
	return c.patchPlayer(ctx, guildID, playerPatch{
		Track:   &encodedTrack{Encoded: &enc},
		Volume:  &vol,
		Paused:  &paused,
		Filters: &filters,
	}, q)
}

func (c *Client) Stop(ctx context.Context, guildID string) error {
	return c.patchPlayer(ctx, guildID, playerPatch{Track: &encodedTrack{}}, nil)
}

func (c *Client) SetPaused(ctx context.Context, guildID string, paused bool) error {
	return c.patchPlayer(ctx, guildID, playerPatch{Paused: &paused}, nil)
}

func (c *Client) Seek(ctx context.Context, guildID string, pos time.Duration) error {
	ms := pos.Milliseconds()
	return c.patchPlayer(ctx, guildID, playerPatch{Position: &ms}, nil)
}

func (c *Client) SetVolume(ctx context.Context, guildID string, volume int) error {
	return c.patchPlayer(ctx, guildID, playerPatch{Volume: &volume}, nil)
}

func (c *Client) SetFilters(ctx context.Context, guildID string, f domain.Filters) error {
	return c.patchPlayer(ctx, guildID, playerPatch{Filters: &f}, nil)
}

// Destroy borra el player del nodo; si el nodo ya no lo tenía no es error.
func (c *Client) Destroy(ctx context.Context, guildID string) error {
	c.forgetVoice(guildID)
	path, err := c.playerPath(guildID)
	if errors.Is(err, ErrNotReady) {
		return nil
	}
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil, nil); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// configureResuming le pide al nodo que conserve los players si se corta el websocket.
func (c *Client) configureResuming(ctx context.Context, sid string) error {
	body := map[string]any{"resuming": true, "timeout": resumingTimeout}
	return c.doJSON(ctx, http.MethodPatch, "/v4/sessions/"+sid, nil, body, nil)
}
