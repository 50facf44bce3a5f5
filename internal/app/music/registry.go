package music

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

const DefaultGrace = 30 * time.Second

// Registry es el mapa guild → sesión. Lo crea main y se pasa por referencia.
type Registry struct {
	node   AudioNode
	voice  VoiceConnector
	states VoiceStates
	notify Notifier
	rec    Recorder
	log    *zap.Logger
	grace  time.Duration
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

type Option func(*Registry)

func WithLogger(l *zap.Logger) Option { return func(r *Registry) { r.log = l } }

func WithRecorder(rec Recorder) Option { return func(r *Registry) { r.rec = rec } }

// WithGrace cambia cuánto se espera con el bot solo antes de desconectar.
func WithGrace(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.grace = d
		}
	}
}

func withClock(now func() time.Time) Option { return func(r *Registry) { r.now = now } }

func NewRegistry(node AudioNode, voice VoiceConnector, states VoiceStates, notify Notifier, opts ...Option) *Registry {
	r := &Registry{
		node:     node,
		voice:    voice,
		states:   states,
		notify:   notify,
		rec:      nopRecorder{},
		log:      zap.NewNop(),
		grace:    DefaultGrace,
		now:      time.Now,
		sessions: map[string]*Session{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Get devuelve la sesión viva de la guild.
func (r *Registry) Get(guildID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[guildID]
	return s, ok
}

// Connect devuelve la sesión de la guild, creándola (y entrando al canal de voz)
// si no había. created indica si es nueva.
func (r *Registry) Connect(ctx context.Context, guildID, voiceChannelID, textChannelID string, dj domain.Member) (s *Session, created bool, err error) {
	r.mu.Lock()
	if s, ok := r.sessions[guildID]; ok {
		r.mu.Unlock()
		return s, false, nil
	}
	s = r.newSession(guildID, voiceChannelID, textChannelID, dj)
	r.sessions[guildID] = s
	r.mu.Unlock()

	if err := r.voice.Join(ctx, guildID, voiceChannelID); err != nil {
		r.remove(s)
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		s.closeOnce.Do(func() { close(s.done) })
		return nil, false, fmt.Errorf("join voice: %w", err)
	}
	r.rec.SessionOpened()
	r.log.Info("sesión abierta", zap.String("guild", guildID), zap.String("voice", voiceChannelID))
	return s, true, nil
}

func (r *Registry) newSession(guildID, voiceChannelID, textChannelID string, dj domain.Member) *Session {
	s := &Session{
		GuildID:        guildID,
		node:           r.node,
		voice:          r.voice,
		states:         r.states,
		notify:         r.notify,
		rec:            r.rec,
		log:            r.log.With(zap.String("guild", guildID)),
		now:            r.now,
		graceAfter:     r.grace,
		state:          StateIdle,
		voiceChannelID: voiceChannelID,
		textChannelID:  textChannelID,
		queue:          NewQueue(false),
		votes:          newVoteSets(),
		volume:         DefaultVolume,
		announce:       true,
		events:         make(chan domain.TrackEvent, eventBuffer),
		done:           make(chan struct{}),
	}
	if !dj.Bot {
		s.djID = dj.ID
	}
	s.onClose = func(s *Session, reason CloseReason) {
		r.remove(s)
		r.rec.SessionClosed(string(reason))
	}
	go s.run()
	return s
}

// remove saca s sólo si sigue siendo la sesión registrada para su guild.
func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[s.GuildID]; ok && cur == s {
		delete(r.sessions, s.GuildID)
	}
}

// Disconnect cierra la sesión de la guild a pedido.
func (r *Registry) Disconnect(ctx context.Context, guildID string) error {
	s, ok := r.Get(guildID)
	if !ok {
		return domain.ErrNoSession
	}
	return s.Close(ctx, CloseRequested)
}

// VoiceLost: el bot quedó afuera del canal (kick, canal borrado).
func (r *Registry) VoiceLost(ctx context.Context, guildID string) error {
	s, ok := r.Get(guildID)
	if !ok {
		return nil
	}
	return s.Close(ctx, CloseVoiceLost)
}

// Dispatch rutea un evento del nodo a la sesión de su guild.
func (r *Registry) Dispatch(ev domain.TrackEvent) {
	r.rec.NodeEvent(ev.Type.String())
	s, ok := r.Get(ev.GuildID)
	if !ok {
		return
	}
	if !s.dispatch(ev) {
		r.log.Debug("evento para sesión cerrada", zap.String("guild", ev.GuildID), zap.Stringer("event", ev.Type))
	}
}

// VoiceMoved avisa que m pasó de from a to (vacío = sin canal).
func (r *Registry) VoiceMoved(guildID string, m domain.Member, from, to string) {
	s, ok := r.Get(guildID)
	if !ok || from == to {
		return
	}
	vc := s.VoiceChannelID()
	switch {
	case from == vc:
		s.memberLeft(m)
	case to == vc:
		s.memberJoined(m)
	}
}

// Snapshots para /players, ordenadas por guild.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(list))
	for _, s := range list {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll baja todas las sesiones (shutdown).
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.Unlock()

	var errs []error
	for _, s := range list {
		if err := s.Close(ctx, CloseShutdown); err != nil {
			errs = append(errs, fmt.Errorf("guild %s: %w", s.GuildID, err))
		}
	}
	return errors.Join(errs...)
}
