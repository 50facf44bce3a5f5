package music

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

// State del player. Disconnected es terminal.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// CloseReason dice por qué se cerró una sesión.
type CloseReason string

const (
	CloseRequested CloseReason = "requested"
	CloseStopped   CloseReason = "stopped"
	CloseAlone     CloseReason = "alone"
	CloseVoiceLost CloseReason = "voice_lost"
	CloseShutdown  CloseReason = "shutdown"
)

const (
	MaxVolume     = 200
	DefaultVolume = 100

	eventBuffer    = 64
	handlerTimeout = 10 * time.Second
)

// Session es el player de una guild: cola, track actual, DJ, votos y flags.
//
// mu protege el estado. advMu serializa los avances de cola (un único
// Idle→Playing por vez) y nunca se toma con mu agarrado.
type Session struct {
	GuildID string

	node    AudioNode
	voice   VoiceConnector
	states  VoiceStates
	notify  Notifier
	rec     Recorder
	log     *zap.Logger
	now     func() time.Time
	onClose func(*Session, CloseReason)

	graceAfter time.Duration

	advMu sync.Mutex

	mu              sync.Mutex
	state           State
	voiceChannelID  string
	textChannelID   string
	djID            string
	current         *domain.Track
	loop            *domain.Track
	stalled         bool // el track actual tiró excepción; no se avanza solo
	announce        bool
	announcePending bool
	queue           *Queue
	votes           voteSets
	volume          int
	filters         domain.Filters
	position        time.Duration
	positionAt      time.Time
	grace           *time.Timer
	graceGen        int

	events    chan domain.TrackEvent
	done      chan struct{}
	closeOnce sync.Once
}

// Snapshot es la foto para queue/nowplaying y el endpoint /players.
type Snapshot struct {
	GuildID         string         `json:"guild_id"`
	State           string         `json:"state"`
	VoiceChannelID  string         `json:"voice_channel_id"`
	TextChannelID   string         `json:"text_channel_id"`
	DJ              string         `json:"dj"`
	Current         *domain.Track  `json:"current,omitempty"`
	Position        time.Duration  `json:"position"`
	Looping         bool           `json:"looping"`
	Queue           []domain.Track `json:"queue"`
	Volume          int            `json:"volume"`
	Announce        bool           `json:"announce"`
	AllowDuplicates bool           `json:"allow_duplicates"`
	Filters         domain.Filters `json:"filters"`
}

// PlayResult describe qué hizo un play.
type PlayResult struct {
	Tracks   []domain.Track // los que entraron
	Playlist string
	Skipped  int  // duplicados salteados
	Started  bool // este pedido arrancó la reproducción
	Position int  // posición en cola (1-based) del primero que entró
}

// EnqueueOptions: Next mete al frente; Atomic rechaza el lote entero ante un duplicado.
type EnqueueOptions struct {
	Next   bool
	Atomic bool
}

func (s *Session) run() {
	for {
		select {
		case ev := <-s.events:
			s.handle(ev)
		case <-s.done:
			return
		}
	}
}

// dispatch encola un evento del nodo. false si la sesión ya cerró.
func (s *Session) dispatch(ev domain.TrackEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) handle(ev domain.TrackEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic en evento", zap.Any("recover", r), zap.Stringer("event", ev.Type))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	switch ev.Type {
	case domain.EventTrackStart:
		s.mu.Lock()
		announce := s.announcePending
		s.announcePending = false
		cur, ch := s.current, s.textChannelID
		s.mu.Unlock()
		if announce && cur != nil {
			s.notify.TrackStarted(s.GuildID, ch, *cur)
		}

	case domain.EventTrackEnd:
		if !ev.Reason.MayStartNext() {
			// eco de nuestro propio skip/stop
			return
		}
		if err := s.advanceAfter(ctx, ev.Track, true); err != nil && !errors.Is(err, domain.ErrSessionClosed) {
			s.report(err)
		}

	case domain.EventTrackException:
		s.mu.Lock()
		if s.staleLocked(ev.Track) {
			s.mu.Unlock()
			return
		}
		s.stalled = true
		cur, ch := s.current, s.textChannelID
		s.mu.Unlock()
		s.log.Warn("track exception", zap.String("message", ev.Message))
		s.notify.PlaybackError(s.GuildID, ch, cur, fmt.Errorf("%w: %s", domain.ErrTrackFailed, ev.Message))

	case domain.EventTrackStuck:
		s.mu.Lock()
		stale := s.staleLocked(ev.Track)
		s.mu.Unlock()
		if stale {
			return
		}
		s.report(domain.ErrTrackStuck)
		if err := s.advanceAfter(ctx, ev.Track, false); err != nil && !errors.Is(err, domain.ErrSessionClosed) {
			s.report(err)
		}

	case domain.EventPlayerUpdate:
		s.mu.Lock()
		if s.current != nil {
			s.position, s.positionAt = ev.Position, s.now()
		}
		s.mu.Unlock()

	case domain.EventSocketClosed:
		s.log.Warn("voz cerrada por discord", zap.Int("code", ev.Code), zap.String("reason", ev.Message))
		if err := s.Close(ctx, CloseVoiceLost); err != nil {
			s.log.Warn("close tras socket closed", zap.Error(err))
		}
	}
}

func (s *Session) report(err error) {
	s.mu.Lock()
	cur, ch := s.current, s.textChannelID
	s.mu.Unlock()
	s.log.Warn("playback", zap.Error(err))
	s.notify.PlaybackError(s.GuildID, ch, cur, err)
}

// ---- lectura ----

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) VoiceChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voiceChannelID
}

func (s *Session) TextChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.textChannelID
}

func (s *Session) DJ() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.djID
}

func (s *Session) Current() (domain.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return domain.Track{}, false
	}
	return *s.current, true
}

func (s *Session) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

func (s *Session) positionLocked() time.Duration {
	if s.current == nil {
		return 0
	}
	p := s.position
	if s.state == StatePlaying {
		p += s.now().Sub(s.positionAt)
	}
	if d := s.current.Duration; d > 0 && !s.current.IsStream && p > d {
		p = d
	}
	return p
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		GuildID:         s.GuildID,
		State:           s.state.String(),
		VoiceChannelID:  s.voiceChannelID,
		TextChannelID:   s.textChannelID,
		DJ:              s.djID,
		Position:        s.positionLocked(),
		Looping:         s.loop != nil,
		Queue:           s.queue.Items(),
		Volume:          s.volume,
		Announce:        s.announce,
		AllowDuplicates: s.queue.AllowDuplicates(),
		Filters:         s.filters,
	}
	if s.current != nil {
		c := *s.current
		snap.Current = &c
	}
	return snap
}

// Authorize valida que el comando venga del canal de texto de la sesión y de
// alguien sentado en su canal de voz.
func (s *Session) Authorize(memberVoiceChannelID, textChannelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state == StateDisconnected:
		return domain.ErrSessionClosed
	case memberVoiceChannelID == "":
		return domain.ErrNotInVoice
	case memberVoiceChannelID != s.voiceChannelID, textChannelID != s.textChannelID:
		return domain.ErrIncorrectChannel
	}
	return nil
}

// IsPrivileged: DJ o moderador.
func (s *Session) IsPrivileged(m domain.Member) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return privileged(s.djID, nil, m, ActionPause)
}

// ---- cola ----

// Play busca query en el nodo y la encola a nombre de requester. Sin resultados
// devuelve ErrNoResults y la sesión queda igual.
func (s *Session) Play(ctx context.Context, query, requester string, next bool) (PlayResult, error) {
	if s.State() == StateDisconnected {
		return PlayResult{}, domain.ErrSessionClosed
	}
	res, err := s.node.Search(ctx, query)
	if err != nil {
		return PlayResult{}, fmt.Errorf("search %q: %w", query, err)
	}
	if res.Empty() {
		return PlayResult{}, domain.ErrNoResults
	}
	tracks := res.Tracks
	if !res.IsPlaylist() {
		tracks = tracks[:1]
	}
	batch := make([]domain.Track, len(tracks))
	for i, t := range tracks {
		t.Query = query
		t.RequesterID = requester
		batch[i] = t
	}

	out, err := s.Enqueue(ctx, batch, EnqueueOptions{Next: next, Atomic: true})
	out.Playlist = res.PlaylistName
	return out, err
}

// Enqueue mete tracks ya resueltos y arranca la reproducción si estaba Idle.
func (s *Session) Enqueue(ctx context.Context, tracks []domain.Track, opts EnqueueOptions) (PlayResult, error) {
	if len(tracks) == 0 {
		return PlayResult{}, domain.ErrNoResults
	}
	var out PlayResult

	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return out, domain.ErrSessionClosed
	}
	switch {
	case opts.Next:
		if err := s.queue.Prepend(tracks...); err != nil {
			s.mu.Unlock()
			return out, err
		}
		out.Tracks, out.Position = tracks, 1
	case len(tracks) == 1:
		if err := s.queue.Enqueue(tracks[0]); err != nil {
			s.mu.Unlock()
			return out, err
		}
		out.Tracks, out.Position = tracks, s.queue.Len()
	default:
		before := s.queue.Len()
		n, err := s.queue.EnqueuePlaylist(tracks, opts.Atomic)
		if err != nil {
			s.mu.Unlock()
			return out, err
		}
		items := s.queue.Items()
		out.Tracks, out.Position, out.Skipped = items[before:], before+1, len(tracks)-n
	}
	s.mu.Unlock()

	started, err := s.tryStart(ctx)
	out.Started = started
	return out, err
}

// tryStart es el único camino Idle→Playing fuera de los eventos del nodo.
func (s *Session) tryStart(ctx context.Context) (bool, error) {
	s.advMu.Lock()
	defer s.advMu.Unlock()

	s.mu.Lock()
	idle := s.state != StateDisconnected && (s.current == nil || s.stalled)
	s.mu.Unlock()
	if !idle {
		return false, nil
	}
	if err := s.advanceLocked(ctx, false); err != nil {
		return false, err
	}
	return true, nil
}

// staleLocked dice si un evento del nodo habla de un track que ya no es el
// actual (llegó tarde, después de un skip). Requiere mu.
func (s *Session) staleLocked(t *domain.Track) bool {
	if t == nil {
		return false
	}
	return s.current == nil || s.current.Encoded != t.Encoded
}

// advanceAfter avanza sólo si ended sigue siendo el track actual. Con
// honorStall, una exception previa deja el player quieto.
func (s *Session) advanceAfter(ctx context.Context, ended *domain.Track, honorStall bool) error {
	s.advMu.Lock()
	defer s.advMu.Unlock()
	s.mu.Lock()
	skip := s.staleLocked(ended) || (honorStall && s.stalled)
	s.mu.Unlock()
	if skip {
		return nil
	}
	return s.advanceLocked(ctx, true)
}

// advanceLocked pasa al siguiente track: loop, si no la cola, si no Idle.
// Requiere advMu.
func (s *Session) advanceLocked(ctx context.Context, auto bool) error {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	var next domain.Track
	if s.loop != nil {
		next = *s.loop
	} else {
		t, err := s.queue.Dequeue()
		if err != nil {
			s.current, s.stalled, s.position = nil, false, 0
			s.state = StateIdle
			s.mu.Unlock()
			return nil
		}
		next = t
	}
	cur := &next
	s.current, s.stalled = cur, false
	s.state = StatePlaying
	s.position, s.positionAt = 0, s.now()
	s.announcePending = auto && s.announce
	opts := PlayOptions{Volume: s.volume, Filters: s.filters}
	s.mu.Unlock()

	if err := s.node.Play(ctx, s.GuildID, next, opts); err != nil {
		s.mu.Lock()
		if s.current == cur {
			s.current, s.announcePending = nil, false
			if s.state != StateDisconnected {
				s.state = StateIdle
			}
		}
		s.mu.Unlock()
		return fmt.Errorf("play %q: %w", next.Title, err)
	}
	s.rec.TrackStarted()
	s.log.Debug("track", zap.String("title", next.Title), zap.Bool("auto", auto))
	return nil
}

func (s *Session) Remove(index int) (domain.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Remove(index)
}

func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.Clear()
}

func (s *Session) SetAnnounce(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.announce = v
}

func (s *Session) SetAllowDuplicates(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.SetAllowDuplicates(v)
}

// ---- votos ----

// Vote pide ejecutar a en nombre de m. Privilegiados ejecutan directo y limpian
// los votos de esa acción; el resto suma votos hasta el quorum.
func (s *Session) Vote(ctx context.Context, a Action, m domain.Member) (VoteResult, error) {
	members := s.states.ChannelMembers(s.GuildID, s.VoiceChannelID())

	s.mu.Lock()
	if err := s.checkActionLocked(a); err != nil {
		s.mu.Unlock()
		return VoteResult{Action: a}, err
	}
	res := VoteResult{Action: a, Required: Quorum(a, humans(members))}
	if privileged(s.djID, s.current, m, a) {
		s.votes.clear(a)
		res.Executed, res.Bypass = true, true
	} else {
		res.Votes = s.votes.add(a, m.ID)
		if res.Votes >= res.Required {
			s.votes.clear(a)
			res.Executed = true
		}
	}
	s.mu.Unlock()

	s.rec.VoteCast(a.String(), res.Executed)
	if !res.Executed {
		return res, nil
	}
	return res, s.execute(ctx, a)
}

// Votes cuenta los votos pendientes de a.
func (s *Session) Votes(a Action) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.votes.count(a)
}

func (s *Session) checkActionLocked(a Action) error {
	if s.state == StateDisconnected {
		return domain.ErrSessionClosed
	}
	switch a {
	case ActionPause:
		if s.state == StatePaused {
			return domain.ErrAlreadyPaused
		}
		if s.state != StatePlaying {
			return domain.ErrNotPlaying
		}
	case ActionResume:
		if s.state != StatePaused {
			return domain.ErrNotPaused
		}
	case ActionSkip:
		if s.current == nil {
			return domain.ErrNotPlaying
		}
	case ActionShuffle:
		if s.queue.Len() == 0 {
			return domain.ErrEmptyQueue
		}
	}
	return nil
}

func (s *Session) execute(ctx context.Context, a Action) error {
	switch a {
	case ActionPause:
		return s.setPaused(ctx, true)
	case ActionResume:
		return s.setPaused(ctx, false)
	case ActionSkip:
		return s.skip(ctx)
	case ActionShuffle:
		s.mu.Lock()
		s.queue.Shuffle()
		s.mu.Unlock()
		return nil
	case ActionStop:
		return s.Close(ctx, CloseStopped)
	}
	return fmt.Errorf("acción desconocida %d", a)
}

func (s *Session) setPaused(ctx context.Context, paused bool) error {
	if err := s.node.SetPaused(ctx, s.GuildID, paused); err != nil {
		return fmt.Errorf("set paused: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.state == StateDisconnected {
		return nil
	}
	if paused {
		s.position = s.positionLocked()
		s.state = StatePaused
	} else {
		s.state = StatePlaying
	}
	s.positionAt = s.now()
	return nil
}

// skip corta el track actual. Si estaba en loop, el loop se apaga.
func (s *Session) skip(ctx context.Context) error {
	s.advMu.Lock()
	defer s.advMu.Unlock()

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return domain.ErrNotPlaying
	}
	s.loop = nil
	empty := s.queue.Len() == 0
	s.mu.Unlock()

	if empty {
		if err := s.node.Stop(ctx, s.GuildID); err != nil {
			return fmt.Errorf("stop: %w", err)
		}
	}
	return s.advanceLocked(ctx, false)
}

// ---- controles directos (el adapter pide privilegio antes) ----

func (s *Session) SetVolume(ctx context.Context, v int) error {
	if v < 0 || v > MaxVolume {
		return domain.ErrInvalidVolume
	}
	if err := s.node.SetVolume(ctx, s.GuildID, v); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
	return nil
}

func (s *Session) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// ToggleLoop prende el loop sobre el track actual o lo apaga.
func (s *Session) ToggleLoop() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop != nil {
		s.loop = nil
		return false, nil
	}
	if s.current == nil {
		return false, domain.ErrNotPlaying
	}
	t := *s.current
	s.loop = &t
	return true, nil
}

// Seek salta a pos, recortado a [0, duración]. Devuelve la posición final.
func (s *Session) Seek(ctx context.Context, pos time.Duration) (time.Duration, error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return 0, domain.ErrNotPlaying
	}
	if !s.current.IsSeekable || s.current.IsStream {
		s.mu.Unlock()
		return 0, domain.ErrNotSeekable
	}
	pos = min(max(pos, 0), s.current.Duration)
	s.mu.Unlock()

	if err := s.node.Seek(ctx, s.GuildID, pos); err != nil {
		return 0, fmt.Errorf("seek: %w", err)
	}
	s.mu.Lock()
	s.position, s.positionAt = pos, s.now()
	s.mu.Unlock()
	return pos, nil
}

func (s *Session) FastForward(ctx context.Context, d time.Duration) (time.Duration, error) {
	return s.Seek(ctx, s.Position()+d)
}

func (s *Session) Rewind(ctx context.Context, d time.Duration) (time.Duration, error) {
	return s.Seek(ctx, s.Position()-d)
}

// SetFilters mezcla f sobre los filtros activos.
func (s *Session) SetFilters(ctx context.Context, f domain.Filters) (domain.Filters, error) {
	s.mu.Lock()
	merged := s.filters.Merge(f)
	s.mu.Unlock()
	if err := s.node.SetFilters(ctx, s.GuildID, merged); err != nil {
		return domain.Filters{}, fmt.Errorf("set filters: %w", err)
	}
	s.mu.Lock()
	s.filters = merged
	s.mu.Unlock()
	return merged, nil
}

func (s *Session) ResetFilters(ctx context.Context) error {
	if err := s.node.SetFilters(ctx, s.GuildID, domain.Filters{}); err != nil {
		return fmt.Errorf("reset filters: %w", err)
	}
	s.mu.Lock()
	s.filters = domain.Filters{}
	s.mu.Unlock()
	return nil
}

// SwapDJ le pasa el DJ a m. El adapter valida que esté en el canal.
func (s *Session) SwapDJ(m domain.Member) error {
	if m.Bot || m.ID == "" {
		return domain.ErrInvalidMember
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return domain.ErrSessionClosed
	}
	s.djID = m.ID
	return nil
}

// ---- voz ----

func (s *Session) memberJoined(m domain.Member) {
	if m.Bot {
		return
	}
	members := s.states.ChannelMembers(s.GuildID, s.VoiceChannelID())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return
	}
	s.stopGraceLocked()

	if s.djID != "" && hasMember(members, s.djID) {
		return
	}
	for _, o := range members {
		if !o.Bot && o.ID != m.ID {
			return
		}
	}
	s.djID = m.ID
}

func (s *Session) memberLeft(m domain.Member) {
	if m.Bot {
		return
	}
	members := s.states.ChannelMembers(s.GuildID, s.VoiceChannelID())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return
	}
	remaining := make([]domain.Member, 0, len(members))
	for _, o := range members {
		if !o.Bot && o.ID != m.ID {
			remaining = append(remaining, o)
		}
	}
	if m.ID == s.djID {
		s.djID = ""
		if len(remaining) > 0 {
			s.djID = remaining[0].ID
		}
	}
	if len(remaining) == 0 {
		s.scheduleGraceLocked()
	}
}

func (s *Session) scheduleGraceLocked() {
	if s.grace != nil {
		return
	}
	s.graceGen++
	gen := s.graceGen
	s.grace = time.AfterFunc(s.graceAfter, func() { s.graceFired(gen) })
}

func (s *Session) stopGraceLocked() {
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
	s.graceGen++
}

// graceFired vuelve a mirar el canal: si alguien volvió no se desconecta.
func (s *Session) graceFired(gen int) {
	s.mu.Lock()
	if gen != s.graceGen || s.state == StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.grace = nil
	vc := s.voiceChannelID
	s.mu.Unlock()

	if humans(s.states.ChannelMembers(s.GuildID, vc)) > 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	if err := s.Close(ctx, CloseAlone); err != nil {
		s.log.Warn("close por canal vacío", zap.Error(err))
	}
}

// Close lleva la sesión a Disconnected: vacía la cola, destruye el player en el
// nodo, sale del canal y la saca del registry. Idempotente.
func (s *Session) Close(ctx context.Context, reason CloseReason) error {
	s.advMu.Lock()
	defer s.advMu.Unlock()

	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateDisconnected
	s.queue.Clear()
	s.current, s.loop = nil, nil
	s.votes = newVoteSets()
	s.stopGraceLocked()
	ch := s.textChannelID
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.done) })

	var errs []error
	if err := s.node.Destroy(ctx, s.GuildID); err != nil {
		errs = append(errs, fmt.Errorf("destroy player: %w", err))
	}
	if err := s.voice.Leave(ctx, s.GuildID); err != nil {
		errs = append(errs, fmt.Errorf("leave voice: %w", err))
	}
	if s.onClose != nil {
		s.onClose(s, reason)
	}
	s.notify.SessionEnded(s.GuildID, ch, reason)
	s.log.Info("sesión cerrada", zap.String("reason", string(reason)))
	return errors.Join(errs...)
}

func hasMember(members []domain.Member, id string) bool {
	for _, m := range members {
		if m.ID == id {
			return true
		}
	}
	return false
}
