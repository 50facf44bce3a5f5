package music

import (
	"context"
	"sync"
	"time"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

type fakeNode struct {
	mu        sync.Mutex
	results   map[string]domain.SearchResult
	searchErr error
	playErr   error
	playDelay time.Duration

	played   []domain.Track
	stops    int
	destroys int
	paused   []bool
	seeks    []time.Duration
	volumes  []int
	filters  []domain.Filters
}

func newFakeNode() *fakeNode {
	return &fakeNode{results: map[string]domain.SearchResult{}}
}

func track(id string) domain.Track {
	return domain.Track{
		Encoded:    "enc-" + id,
		Identifier: id,
		SourceName: "youtube",
		Title:      id,
		Duration:   3 * time.Minute,
		IsSeekable: true,
	}
}

func (n *fakeNode) Search(_ context.Context, q string) (domain.SearchResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.searchErr != nil {
		return domain.SearchResult{}, n.searchErr
	}
	if r, ok := n.results[q]; ok {
		return r, nil
	}
	return domain.SearchResult{Tracks: []domain.Track{track(q)}}, nil
}

func (n *fakeNode) Play(_ context.Context, _ string, t domain.Track, _ PlayOptions) error {
	if n.playDelay > 0 {
		time.Sleep(n.playDelay)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.playErr != nil {
		return n.playErr
	}
	n.played = append(n.played, t)
	return nil
}

func (n *fakeNode) Stop(context.Context, string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stops++
	return nil
}

func (n *fakeNode) SetPaused(_ context.Context, _ string, p bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paused = append(n.paused, p)
	return nil
}

func (n *fakeNode) Seek(_ context.Context, _ string, pos time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seeks = append(n.seeks, pos)
	return nil
}

func (n *fakeNode) SetVolume(_ context.Context, _ string, v int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.volumes = append(n.volumes, v)
	return nil
}

func (n *fakeNode) SetFilters(_ context.Context, _ string, f domain.Filters) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.filters = append(n.filters, f)
	return nil
}

func (n *fakeNode) Destroy(context.Context, string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.destroys++
	return nil
}

func (n *fakeNode) playedTitles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.played))
	for i, t := range n.played {
		out[i] = t.Title
	}
	return out
}

func (n *fakeNode) stopCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stops
}

func (n *fakeNode) destroyCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.destroys
}

type fakeVoice struct {
	mu      sync.Mutex
	joinErr error
	joins   int
	leaves  int
}

func (v *fakeVoice) Join(context.Context, string, string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.joins++
	return v.joinErr
}

func (v *fakeVoice) Leave(context.Context, string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.leaves++
	return nil
}

func (v *fakeVoice) leaveCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.leaves
}

// fakeStates guarda miembros por canal en el orden en que se cargan.
type fakeStates struct {
	mu       sync.Mutex
	channels map[string][]domain.Member
}

func newFakeStates() *fakeStates { return &fakeStates{channels: map[string][]domain.Member{}} }

func (f *fakeStates) set(channelID string, members ...domain.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[channelID] = members
}

func (f *fakeStates) ChannelMembers(_, channelID string) []domain.Member {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Member(nil), f.channels[channelID]...)
}

type fakeNotifier struct {
	mu      sync.Mutex
	started []domain.Track
	errs    []error
	ended   []CloseReason
}

func (f *fakeNotifier) TrackStarted(_, _ string, t domain.Track) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, t)
}

func (f *fakeNotifier) PlaybackError(_, _ string, _ *domain.Track, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, err)
}

func (f *fakeNotifier) SessionEnded(_, _ string, r CloseReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, r)
}

func (f *fakeNotifier) errors() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.errs...)
}

func (f *fakeNotifier) endings() []CloseReason {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CloseReason(nil), f.ended...)
}

func (f *fakeNotifier) announced() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.started)
}
