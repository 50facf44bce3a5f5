package music

import (
	"context"
	"time"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

// PlayOptions acompaña a Play para que el player arranque ya configurado.
type PlayOptions struct {
	Volume  int
	Filters domain.Filters
	Paused  bool
}

// AudioNode es lo que el core necesita del nodo de audio.
type AudioNode interface {
	Search(ctx context.Context, query string) (domain.SearchResult, error)
	Play(ctx context.Context, guildID string, t domain.Track, opts PlayOptions) error
	Stop(ctx context.Context, guildID string) error
	SetPaused(ctx context.Context, guildID string, paused bool) error
	Seek(ctx context.Context, guildID string, pos time.Duration) error
	SetVolume(ctx context.Context, guildID string, volume int) error
	SetFilters(ctx context.Context, guildID string, f domain.Filters) error
	Destroy(ctx context.Context, guildID string) error
}

// VoiceConnector mueve al bot dentro/fuera de un canal de voz.
type VoiceConnector interface {
	Join(ctx context.Context, guildID, channelID string) error
	Leave(ctx context.Context, guildID string) error
}

// VoiceStates lee quién está en un canal de voz. El orden tiene que ser estable.
type VoiceStates interface {
	ChannelMembers(guildID, channelID string) []domain.Member
}

// Notifier recibe lo que el core quiere contar al canal de texto. No formatea nada.
type Notifier interface {
	TrackStarted(guildID, channelID string, t domain.Track)
	PlaybackError(guildID, channelID string, t *domain.Track, err error)
	SessionEnded(guildID, channelID string, reason CloseReason)
}

// Recorder son las métricas del core.
type Recorder interface {
	SessionOpened()
	SessionClosed(reason string)
	TrackStarted()
	VoteCast(action string, executed bool)
	NodeEvent(kind string)
}

type nopRecorder struct{}

func (nopRecorder) SessionOpened()        {}
func (nopRecorder) SessionClosed(string)  {}
func (nopRecorder) TrackStarted()         {}
func (nopRecorder) VoteCast(string, bool) {}
func (nopRecorder) NodeEvent(string)      {}
