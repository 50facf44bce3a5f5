package domain

import (
	"net/url"
	"strings"
	"time"
)

// Track es un item reproducible ya resuelto por el nodo de audio.
// Se trata como inmutable una vez creado.
type Track struct {
	Encoded    string // payload opaco del nodo
	Identifier string
	SourceName string
	Title      string
	Author     string
	URI        string
	ArtworkURL string
	Duration   time.Duration
	IsStream   bool
	IsSeekable bool

	Query       string // lo que escribió el usuario
	RequesterID string
}

// Identity normaliza la fuente del track para detectar duplicados.
func (t Track) Identity() string {
	if t.Identifier != "" {
		return strings.ToLower(t.SourceName) + ":" + t.Identifier
	}
	raw := strings.TrimSpace(t.URI)
	if raw == "" {
		raw = strings.TrimSpace(t.Query)
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		u.Fragment = ""
		u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
		u.Scheme = strings.ToLower(u.Scheme)
		return strings.TrimSuffix(u.String(), "/")
	}
	return strings.ToLower(raw)
}

// SearchResult es lo que devuelve el nodo para una query.
type SearchResult struct {
	Tracks       []Track
	PlaylistName string // vacío si no es playlist
}

// Empty indica que la búsqueda no encontró nada reproducible.
func (r SearchResult) Empty() bool { return len(r.Tracks) == 0 }

// IsPlaylist indica si el resultado vino como playlist completa.
func (r SearchResult) IsPlaylist() bool { return r.PlaylistName != "" }

// VoiceServer son los datos de handshake de voz que el nodo necesita.
type VoiceServer struct {
	Token     string
	Endpoint  string
	SessionID string
}

// Member es la vista mínima de un miembro que necesita el core.
type Member struct {
	ID        string
	Bot       bool
	Moderator bool
}

// --- eventos del nodo ---

type EventType int

const (
	EventTrackStart EventType = iota + 1
	EventTrackEnd
	EventTrackException
	EventTrackStuck
	EventPlayerUpdate
	EventSocketClosed
)

func (t EventType) String() string {
	switch t {
	case EventTrackStart:
		return "track_start"
	case EventTrackEnd:
		return "track_end"
	case EventTrackException:
		return "track_exception"
	case EventTrackStuck:
		return "track_stuck"
	case EventPlayerUpdate:
		return "player_update"
	case EventSocketClosed:
		return "socket_closed"
	}
	return "unknown"
}

// EndReason replica los motivos de TrackEndEvent de Lavalink.
type EndReason string

const (
	EndFinished   EndReason = "finished"
	EndLoadFailed EndReason = "loadFailed"
	EndStopped    EndReason = "stopped"
	EndReplaced   EndReason = "replaced"
	EndCleanup    EndReason = "cleanup"
)

// MayStartNext: sólo finished/loadFailed avanzan la cola; el resto es eco
// de nuestro propio skip/stop.
func (r EndReason) MayStartNext() bool {
	return r == EndFinished || r == EndLoadFailed
}

// TrackEvent es el payload que el nodo empuja por guild.
type TrackEvent struct {
	Type     EventType
	GuildID  string
	Track    *Track
	Reason   EndReason
	Message  string // exception/stuck/socket closed
	Position time.Duration
	Code     int // código de cierre del websocket de voz
}
