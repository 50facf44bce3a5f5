package music

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

var (
	bot = domain.Member{ID: "bot", Bot: true}
	u1  = domain.Member{ID: "u1"}
	u2  = domain.Member{ID: "u2"}
	u3  = domain.Member{ID: "u3"}
	u4  = domain.Member{ID: "u4"}
	u5  = domain.Member{ID: "u5"}
)

type harness struct {
	reg    *Registry
	node   *fakeNode
	voice  *fakeVoice
	states *fakeStates
	notify *fakeNotifier
	clock  time.Time
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		node:   newFakeNode(),
		voice:  &fakeVoice{},
		states: newFakeStates(),
		notify: &fakeNotifier{},
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	h.states.set("vc", bot, u1)
	opts = append([]Option{withClock(func() time.Time { return h.clock }), WithGrace(time.Hour)}, opts...)
	h.reg = NewRegistry(h.node, h.voice, h.states, h.notify, opts...)
	t.Cleanup(func() { _ = h.reg.CloseAll(context.Background()) })
	return h
}

func (h *harness) connect(t *testing.T) *Session {
	t.Helper()
	s, created, err := h.reg.Connect(context.Background(), "g", "vc", "tc", u1)
	require.NoError(t, err)
	require.True(t, created)
	return s
}

// flush espera a que la sesión procese todo lo despachado antes: el
// PlayerUpdate marcador se aplica en orden detrás del resto.
func (h *harness) flush(t *testing.T, s *Session) {
	t.Helper()
	if _, ok := s.Current(); !ok {
		// sin track el marcador no se aplica; alcanza con un evento que no hace nada
		h.reg.Dispatch(domain.TrackEvent{Type: domain.EventTrackEnd, GuildID: s.GuildID, Reason: domain.EndReplaced})
		time.Sleep(20 * time.Millisecond)
		return
	}
	marker := 1234 * time.Millisecond
	h.reg.Dispatch(domain.TrackEvent{Type: domain.EventPlayerUpdate, GuildID: s.GuildID, Position: marker})
	require.Eventually(t, func() bool { return s.Position() == marker }, time.Second, 5*time.Millisecond)
}

func queued(s *Session) []string { return titles(s.Snapshot().Queue) }

func currentTitle(s *Session) string {
	if c, ok := s.Current(); ok {
		return c.Title
	}
	return ""
}

func TestSession_ConnectIsIdleWithDJ(t *testing.T) {
	h := newHarness(t)
	s := h.connect(t)

	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, "u1", s.DJ())
	assert.Equal(t, 1, h.reg.Len())

	again, created, err := h.reg.Connect(context.Background(), "g", "vc", "tc", u2)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, s, again)
}

func TestSession_ConnectJoinFails(t *testing.T) {
	h := newHarness(t)
	h.voice.joinErr = errors.New("missing permissions")

	_, _, err := h.reg.Connect(context.Background(), "g", "vc", "tc", u1)
	require.Error(t, err)
	assert.Zero(t, h.reg.Len())
}

func TestSession_PlayStartsWhenIdle(t *testing.T) {
	h := newHarness(t)
	s := h.connect(t)

	res, err := s.Play(context.Background(), "A", "u1", false)
	require.NoError(t, err)
	assert.True(t, res.Started)
	assert.Equal(t, StatePlaying, s.State())
	assert.Equal(t, "A", currentTitle(s))
	assert.Empty(t, queued(s))

	res, err = s.Play(context.Background(), "B", "u2", false)
	require.NoError(t, err)
	assert.False(t, res.Started)
	assert.Equal(t, 1, res.Position)
	assert.Equal(t, []string{"A"}, h.node.playedTitles())

	cur, _ := s.Current()
	assert.Equal(t, "u1", cur.RequesterID)
	assert.Equal(t, "A", cur.Query)
}

func TestSession_NoResultsLeavesSessionUnchanged(t *testing.T) {
	h := newHarness(t)
	s := h.connect(t)
	h.node.results["nada"] = domain.SearchResult{}

	_, err := s.Play(context.Background(), "nada", "u1", false)
	require.ErrorIs(t, err, domain.ErrNoResults)
	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, h.node.playedTitles())

	h.node.searchErr = errors.New("node down")
	_, err = s.Play(context.Background(), "x", "u1", false)
	require.Error(t, err)
	assert.Empty(t, queued(s))
}

func TestSession_ConcurrentEnqueueStartsOnce(t *testing.T) {
	h := newHarness(t)
	s := h.connect(t)
	h.node.playDelay = 20 * time.Millisecond

	var wg sync.WaitGroup
	started := make(chan bool, 8)
	for _, q := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			res, err := s.Play(context.Background(), q, "u1", false)
			assert.NoError(t, err)
			started <- res.Started
		}(q)
	}
	wg.Wait()
	close(started)

	n := 0
	for st := range started {
		if st {
			n++
		}
	}
	assert.Equal(t, 1, n)
	assert.Len(t, h.node.playedTitles(), 1)
	assert.Len(t, queued(s), 7)
}

func TestSession_PlaylistAndNext(t *testing.T) {
	h := newHarness(t)
	s := h.connect(t)
	h.node.results["pl"] = domain.SearchResult{
		PlaylistName: "mix",
		Tracks:       []domain.Track{track("p1"), track("p2"), track("p3")},
	}
	h.node.results["search"] = domain.SearchResult{Tracks: []domain.Track{track("s1"), track("s2")}}

	res, err := s.Play(context.Background(), "pl", "u1", false)
	require.NoError(t, err)
	assert.Equal(t, "mix", res.Playlist)
	assert.True(t, res.Started)
	assert.Equal(t, []string{"p2", "p3"}, queued(s))

	// búsqueda simple: sólo el primer resultado
	_, err = s.Play(context.Background(), "search", "u1", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "p2", "p3"}, queued(s))

	// playlist con duplicados: atómica, no entra nada
	_, err = s.Play(context.Background(), "pl", "u1", false)
	require.ErrorIs(t, err, domain.ErrDuplicateTrack)
	assert.Equal(t, []string{"s1", "p2", "p3"}, queued(s))
}

func TestSession_TrackEndAdvancesAndLoop(t *testing.T) {
	h := newHarness(t)
	s := h.connect(t)
	ctx := context.Background()
	for _, q := range []string{"A", "B", "C"} {
		_, err := s.Play(ctx, q, "u1", false)
		require.NoError(t, err)
	}
	require.Equal(t, "A", currentTitle(s))
	require.Equal(t, []string{"B", "C"}, queued(s))

	h.reg.Dispatch(domain.TrackEvent{Type: domain.EventTrackEnd, GuildID: "g", Reason: domain.EndFinished})
	require.Eventually(t, func() bool { return currentTitle(s) == "B" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"C"}, queued(s))

	on, err := s.ToggleLoop()
	require.NoError(t, err)
	require.True(t, on)

	h.reg.Dispatch(domain.TrackEvent{Type: domain.EventTrackEnd, GuildID: "g", Reason: domain.EndFinished})
	require.Eventually(t, func() bool { return len(h.node.playedTitles()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"A", "B", "B"}, h.node.playedTitles())
	assert.Equal(t, "B", currentTitle(s))
	assert.Equal(t, []string{"C"}, queued(s))
}

func TestSession_TrackEndEchoIgnored(t *testing.T) {
	h := newHarness(t)
	s := h.connect(t)
	_, err := s.Play(context.Background(), "A", "u1", false)
	require.NoError(t, err)
	_, err = s.Play(context.Background(), "B", "u1", false)
	require.NoError(t, err)

	for _, r := range []domain.EndReason{domain.EndReplaced, domain.EndStopped, domain.EndCleanup} {
		h.reg.Dispatch(domain.TrackEvent{Type: domain.EventTrackEnd, GuildID: "g", Reason: r})
	}
	h.flush(t, s)
	assert.Equal(t, "A", currentTitle(s))
	assert.Equal(t, []string{"B"}, queued(s))
}

func TestSession_LateEventsForSkippedTrackIgnored(t *testing.T) {
	h := newHarness(t)
	s := h.connect(t)
	ctx := context.Background()
	for _, q := range []string{"A", "B", "C"} {
		_, err := s.Play(ctx, q, "u1", false)
		require.NoError(t, err)
	}
	_, err := s.Vote(ctx, ActionSkip, u1)
	require.NoError(t, err)
	require.Equal(t, "B", currentTitle(s))

	// el nodo termina de reportar A después del skip
	a := track("A")
	h.reg.Dispatch(domain.TrackEvent{Type: domain.EventTrackEnd, GuildID: "g", Reason: domain.EndFinished, Track: &a})
	h.reg.Dispatch(domain.TrackEvent{Type: domain.EventTrackStuck, GuildID: "g", Track: &a})
	h.reg.Dispatch(domain.TrackEvent{Type: domain.EventTrackException, GuildID: "g", Track: &a, Message: "tarde"})
	h.flush(t, s)

	assert.Equal(t, "B", currentTitle(s))
	assert.Equal(t, []string{"C"}, queued(s))
	assert.Equal(t, []string{"A", "B"}, h.node.playedTitles())
	assert.Empty(t, h.notify.errors())

	// el fin del actual sí avanza
	b := track("B")
	h.reg.Dispatch(domain.TrackEvent{Type: domain.EventTrackEnd, GuildID: "g", Reason: domain.EndFinished, Track: &b})
	require.Eventually(t, func() bool { return currentTitle(s) == "C" }, time.Second, 5*time.Millisecond)
}

func TestSession_QueueDrainsToIdle(t *testing.T) {
	h := newHarness(t)
	s := h.connect(t)
	_, err := s.Play(context.Background(), "A", "u1", false)
	require.NoError(t, err)

	h.reg.Dispatch(domain.TrackEvent{Type: domain.EventTrackEnd, GuildID: "g", Reason: domain.EndFinished})
	require.Eventually(t, func() bool { return s.State() == StateIdle }, time.Second, 5*time.Millisecond)
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestSession_ExceptionDoesNotAdvance(t *testing.T) {
	h := newHarness(t)
	s := h.connect(t)
	ctx := context.Background()
	_, err := s.Play(ctx, "A", "u1", false)
	require.NoError(t, err)
	_, err = s.Play(ctx, "B", "u1", false)
	require.NoError(t, err)

	h.reg.Dispatch(domain.TrackEvent{Type: domain.EventTrackException, GuildID: "g", Message: "403"})
	h.reg.Dispatch(domain.TrackEvent{Type: domain.EventTrackEnd, GuildID: "g", Reason: domain.EndLoadFailed})
	h.flush(t, s)

	assert.Equal(t, "A", currentTitle(s))
	assert.Equal(t, []string{"B"}, queued(s))
	require.Len(t, h.notify.errors(), 1)
	assert.ErrorIs(t, h.notify.errors()[0], domain.ErrTrackFailed)

	// la próxima acción de cola destraba
	res, err := s.Play(ctx, "C", "u1", false)
	require.NoError(t, err)
	assert.True(t, res.Started)
	assert.Equal(t, "B", currentTitle(s))
}

func TestSession_StuckAdvances(t *testing.T) {
	h := newHarness(t)
	s := h.connect(t)
	ctx := context.Background()
	_, err := s.Play(ctx, "A", "u1", false)
	require.NoError(t, err)
	_, err = s.Play(ctx, "B", "u1", false)
	require.NoError(t, err)

	h.reg.Dispatch(domain.TrackEvent{Type: domain.EventTrackStuck, GuildID: "g"})
	require.Eventually(t, func() bool { return currentTitle(s) == "B" }, time.Second, 5*time.Millisecond)
	require.NotEmpty(t, h.notify.errors())
	assert.ErrorIs(t, h.notify.errors()[0], domain.ErrTrackStuck)
}

func TestSession_AnnounceOnlyAutoAdvanced(t *testing.T) {
	h := newHarness(t)
	s := h.connect(t)
	ctx := context.Background()
	_, err := s.Play(ctx, "A", "u1", false)
	require.NoError(t, err)
	_, err = s.Play(ctx, "B", "u1", false)
	require.NoError(t, err)

	h.reg.Dispatch(domain.TrackEvent{Type: domain.EventTrackStart, GuildID: "g"})
	h.flush(t, s)
	assert.Zero(t, h.notify.announced())

	h.reg.Dispatch(domain.TrackEvent{Type: domain.EventTrackEnd, GuildID: "g", Reason: domain.EndFinished})
	h.reg.Dispatch(domain.TrackEvent{Type: domain.EventTrackStart, GuildID: "g"})
	require.Eventually(t, func() bool { return h.notify.announced() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSession_PrivilegedBypassClearsVotes(t *testing.T) {
	h := newHarness(t)
	h.states.set("vc", bot, u1, u2, u3, u4, u5)
	s := h.connect(t)
	ctx := context.Background()
	_, err := s.Play(ctx, "A", "u3", false)
	require.NoError(t, err)

	res, err := s.Vote(ctx, ActionPause, u2)
	require.NoError(t, err)
	assert.False(t, res.Executed)
	assert.Equal(t, 1, res.Votes)
	assert.Equal(t, 2, res.Required)

	// votar dos veces no suma
	res, err = s.Vote(ctx, ActionPause, u2)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Votes)

	// un voto de skip no toca pause
	_, err = s.Vote(ctx, ActionSkip, u4)
	require.NoError(t, err)

	res, err = s.Vote(ctx, ActionPause, u1) // DJ
	require.NoError(t, err)
	assert.True(t, res.Executed)
	assert.True(t, res.Bypass)
	assert.Zero(t, s.Votes(ActionPause))
	assert.Equal(t, 1, s.Votes(ActionSkip))
	assert.Equal(t, StatePaused, s.State())

	_, err = s.Vote(ctx, ActionPause, u1)
	require.ErrorIs(t, err, domain.ErrAlreadyPaused)

	res, err = s.Vote(ctx, ActionResume, domain.Member{ID: "mod", Moderator: true})
	require.NoError(t, err)
	assert.True(t, res.Bypass)
	assert.Equal(t, StatePlaying, s.State())
}

func TestSession_QuorumExecutes(t *testing.T) {
	h := newHarness(t)
	h.states.set("vc", bot, u1, u2, u3, u4, u5)
	s := h.connect(t)
	ctx := context.Background()
	for _, q := range []string{"A", "B"} {
		_, err := s.Play(ctx, q, "u1", false)
		require.NoError(t, err)
	}

	res, err := s.Vote(ctx, ActionSkip, u2)
	require.NoError(t, err)
	assert.False(t, res.Executed)

	res, err = s.Vote(ctx, ActionSkip, u3)
	require.NoError(t, err)
	assert.True(t, res.Executed)
	assert.False(t, res.Bypass)
	assert.Zero(t, s.Votes(ActionSkip))
	assert.Equal(t, "B", currentTitle(s))
}

func TestSession_RequesterMaySkipOwnTrack(t *testing.T) {
	h := newHarness(t)
	h.states.set("vc", bot, u1, u2, u3, u4, u5)
	s := h.connect(t)
	ctx := context.Background()
	_, err := s.Play(ctx, "A", "u3", false)
	require.NoError(t, err)

	res, err := s.Vote(ctx, ActionStop, u3)
	require.NoError(t, err)
	assert.False(t, res.Executed)

	res, err = s.Vote(ctx, ActionSkip, u3)
	require.NoError(t, err)
	assert.True(t, res.Bypass)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 1, h.node.stopCount())
}

func TestSession_StopWithThreeMembersNeedsTwo(t *testing.T) {
	h := newHarness(t)
	h.states.set("vc", bot, u1, u2, u3)
	s := h.connect(t)

	res, err := s.Vote(context.Background(), ActionStop, u2)
	require.NoError(t, err)
	assert.False(t, res.Executed)
	assert.Equal(t, 2, res.Required)

	res, err = s.Vote(context.Background(), ActionStop, u3)
	require.NoError(t, err)
	assert.True(t, res.Executed)
	assert.Equal(t, StateDisconnected, s.State())
	assert.Zero(t, h.reg.Len())
	assert.Equal(t, []CloseReason{CloseStopped}, h.notify.endings())
}

func TestSession_SkipClearsLoop(t *testing.T) {
	h := newHarness(t)
	s := h.connect(t)
	ctx := context.Background()
	for _, q := range []string{"A", "B"} {
		_, err := s.Play(ctx, q, "u1", false)
		require.NoError(t, err)
	}
	_, err := s.ToggleLoop()
	require.NoError(t, err)

	_, err = s.Vote(ctx, ActionSkip, u1)
	require.NoError(t, err)
	assert.Equal(t, "B", currentTitle(s))
	assert.False(t, s.Snapshot().Looping)
}

func TestSession_DirectControls(t *testing.T) {
	h := newHarness(t)
	s := h.connect(t)
	ctx := context.Background()

	_, err := s.Seek(ctx, time.Second)
	require.ErrorIs(t, err, domain.ErrNotPlaying)

	_, err = s.Play(ctx, "A", "u1", false)
	require.NoError(t, err)

	require.ErrorIs(t, s.SetVolume(ctx, 201), domain.ErrInvalidVolume)
	require.NoError(t, s.SetVolume(ctx, 150))
	assert.Equal(t, 150, s.Volume())

	pos, err := s.Seek(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Minute, pos)

	pos, err = s.Rewind(ctx, 4*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, pos)

	pos, err = s.FastForward(ctx, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, pos)

	f, err := s.SetFilters(ctx, domain.Filters{Rotation: &domain.Rotation{RotationHz: 0.2}})
	require.NoError(t, err)
	f, err = s.SetFilters(ctx, domain.Filters{LowPass: &domain.LowPass{Smoothing: 20}})
	require.NoError(t, err)
	assert.NotNil(t, f.Rotation)
	assert.NotNil(t, f.LowPass)
	require.NoError(t, s.ResetFilters(ctx))
	assert.Equal(t, domain.Filters{}, s.Snapshot().Filters)

	require.ErrorIs(t, s.SwapDJ(bot), domain.ErrInvalidMember)
	require.NoError(t, s.SwapDJ(u2))
	assert.Equal(t, "u2", s.DJ())
	assert.True(t, s.IsPrivileged(u2))
	assert.False(t, s.IsPrivileged(u1))
}

func TestSession_Authorize(t *testing.T) {
	h := newHarness(t)
	s := h.connect(t)

	assert.NoError(t, s.Authorize("vc", "tc"))
	assert.ErrorIs(t, s.Authorize("", "tc"), domain.ErrNotInVoice)
	assert.ErrorIs(t, s.Authorize("otro", "tc"), domain.ErrIncorrectChannel)
	assert.ErrorIs(t, s.Authorize("vc", "otro"), domain.ErrIncorrectChannel)
}

func TestSession_DJHandoffAndAdoption(t *testing.T) {
	h := newHarness(t)
	h.states.set("vc", bot, u1, u2, u3)
	s := h.connect(t)

	h.states.set("vc", bot, u2, u3)
	h.reg.VoiceMoved("g", u1, "vc", "")
	assert.Equal(t, "u2", s.DJ())

	h.states.set("vc", bot, u3)
	h.reg.VoiceMoved("g", u2, "vc", "")
	assert.Equal(t, "u3", s.DJ())

	h.states.set("vc", bot)
	h.reg.VoiceMoved("g", u3, "vc", "")
	assert.Equal(t, "", s.DJ())

	h.states.set("vc", bot, u4)
	h.reg.VoiceMoved("g", u4, "", "vc")
	assert.Equal(t, "u4", s.DJ())

	// con DJ presente, el que entra no lo pisa
	h.states.set("vc", bot, u4, u5)
	h.reg.VoiceMoved("g", u5, "", "vc")
	assert.Equal(t, "u4", s.DJ())
}

func TestSession_GraceDisconnectsWhenAlone(t *testing.T) {
	h := newHarness(t, WithGrace(30*time.Millisecond))
	s := h.connect(t)

	h.states.set("vc", bot)
	h.reg.VoiceMoved("g", u1, "vc", "")

	require.Eventually(t, func() bool { return len(h.notify.endings()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateDisconnected, s.State())
	assert.Zero(t, h.reg.Len())
	assert.Equal(t, 1, h.voice.leaveCount())
	assert.Equal(t, []CloseReason{CloseAlone}, h.notify.endings())
}

func TestSession_GraceCancelledOnRejoin(t *testing.T) {
	h := newHarness(t, WithGrace(50*time.Millisecond))
	s := h.connect(t)

	h.states.set("vc", bot)
	h.reg.VoiceMoved("g", u1, "vc", "")
	h.states.set("vc", bot, u1)
	h.reg.VoiceMoved("g", u1, "", "vc")

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 1, h.reg.Len())
}

func TestSession_GraceRechecksChannel(t *testing.T) {
	h := newHarness(t, WithGrace(30*time.Millisecond))
	s := h.connect(t)

	h.states.set("vc", bot)
	h.reg.VoiceMoved("g", u1, "vc", "")
	// volvió sin que llegara el evento de join
	h.states.set("vc", bot, u2)

	time.Sleep(120 * time.Millisecond)
	assert.NotEqual(t, StateDisconnected, s.State())
}

func TestSession_SocketClosedTearsDown(t *testing.T) {
	h := newHarness(t)
	s := h.connect(t)
	_, err := s.Play(context.Background(), "A", "u1", false)
	require.NoError(t, err)

	h.reg.Dispatch(domain.TrackEvent{Type: domain.EventSocketClosed, GuildID: "g", Code: 4014})
	require.Eventually(t, func() bool { return len(h.notify.endings()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateDisconnected, s.State())
	assert.Empty(t, s.Snapshot().Queue)
	assert.Zero(t, h.reg.Len())
	assert.Equal(t, 1, h.node.destroyCount())
	assert.Equal(t, []CloseReason{CloseVoiceLost}, h.notify.endings())
}

func TestRegistry_DisconnectAndSnapshots(t *testing.T) {
	h := newHarness(t)
	s := h.connect(t)
	_, err := s.Play(context.Background(), "A", "u1", false)
	require.NoError(t, err)

	snaps := h.reg.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, "playing", snaps[0].State)
	require.NotNil(t, snaps[0].Current)
	assert.Equal(t, "A", snaps[0].Current.Title)

	require.NoError(t, h.reg.Disconnect(context.Background(), "g"))
	require.ErrorIs(t, h.reg.Disconnect(context.Background(), "g"), domain.ErrNoSession)

	_, err = s.Play(context.Background(), "B", "u1", false)
	require.ErrorIs(t, err, domain.ErrSessionClosed)
}
