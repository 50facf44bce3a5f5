package audionode

import (
	"encoding/json"
	"time"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

type trackInfoDTO struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
	ArtworkURL string `json:"artworkUrl"`
	SourceName string `json:"sourceName"`
}

type trackDTO struct {
	Encoded string       `json:"encoded"`
	Info    trackInfoDTO `json:"info"`
}

func (t trackDTO) toDomain() domain.Track {
	return domain.Track{
		Encoded:    t.Encoded,
		Identifier: t.Info.Identifier,
		SourceName: t.Info.SourceName,
		Title:      t.Info.Title,
		Author:     t.Info.Author,
		URI:        t.Info.URI,
		ArtworkURL: t.Info.ArtworkURL,
		Duration:   time.Duration(t.Info.Length) * time.Millisecond,
		IsStream:   t.Info.IsStream,
		IsSeekable: t.Info.IsSeekable,
	}
}

// loadResultDTO: data cambia de forma según loadType.
type loadResultDTO struct {
	LoadType string          `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

type playlistDTO struct {
	Info struct {
		Name          string `json:"name"`
		SelectedTrack int    `json:"selectedTrack"`
	} `json:"info"`
	Tracks []trackDTO `json:"tracks"`
}

type exceptionDTO struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

// ---- PATCH /players ----

type encodedTrack struct {
	Encoded *string `json:"encoded"` // nil = null = parar
}

type voiceDTO struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

type playerPatch struct {
	Track    *encodedTrack   `json:"track,omitempty"`
	Position *int64          `json:"position,omitempty"`
	Volume   *int            `json:"volume,omitempty"`
	Paused   *bool           `json:"paused,omitempty"`
	Filters  *domain.Filters `json:"filters,omitempty"`
	Voice    *voiceDTO       `json:"voice,omitempty"`
}

// ---- websocket ----

type wsMessage struct {
	Op        string `json:"op"`
	SessionID string `json:"sessionId"`
	Resumed   bool   `json:"resumed"`
	GuildID   string `json:"guildId"`

	State *struct {
		Time      int64 `json:"time"`
		Position  int64 `json:"position"`
		Connected bool  `json:"connected"`
		Ping      int   `json:"ping"`
	} `json:"state"`

	Type        string        `json:"type"`
	Track       *trackDTO     `json:"track"`
	Reason      string        `json:"reason"`
	Exception   *exceptionDTO `json:"exception"`
	ThresholdMs int64         `json:"thresholdMs"`
	Code        int           `json:"code"`
	ByRemote    bool          `json:"byRemote"`
}
