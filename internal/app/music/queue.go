package music

import (
	"math/rand/v2"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

// Queue es la cola de tracks pendientes (sin el que está sonando).
// No es thread-safe: la Session dueña la serializa con su mutex.
type Queue struct {
	items           []domain.Track
	allowDuplicates bool
	shuffle         func(n int, swap func(i, j int))
}

func NewQueue(allowDuplicates bool) *Queue {
	return &Queue{allowDuplicates: allowDuplicates, shuffle: rand.Shuffle}
}

func (q *Queue) SetAllowDuplicates(v bool) { q.allowDuplicates = v }

func (q *Queue) AllowDuplicates() bool { return q.allowDuplicates }

func (q *Queue) contains(id string) bool {
	for _, t := range q.items {
		if t.Identity() == id {
			return true
		}
	}
	return false
}

// Enqueue agrega al final. ErrDuplicateTrack si no se permiten duplicados y ya está.
func (q *Queue) Enqueue(t domain.Track) error {
	if !q.allowDuplicates && q.contains(t.Identity()) {
		return domain.ErrDuplicateTrack
	}
	q.items = append(q.items, t)
	return nil
}

// EnqueuePlaylist agrega un lote al final. Con atomic, un duplicado (contra la cola
// o dentro del mismo lote) rechaza todo; sin atomic se saltean los duplicados.
func (q *Queue) EnqueuePlaylist(tracks []domain.Track, atomic bool) (int, error) {
	batch, err := q.filter(tracks, atomic)
	if err != nil {
		return 0, err
	}
	q.items = append(q.items, batch...)
	return len(batch), nil
}

// Prepend mete el lote al frente conservando su orden. Mismas reglas que un lote atómico.
func (q *Queue) Prepend(tracks ...domain.Track) error {
	batch, err := q.filter(tracks, true)
	if err != nil {
		return err
	}
	q.items = append(batch, q.items...)
	return nil
}

func (q *Queue) filter(tracks []domain.Track, atomic bool) ([]domain.Track, error) {
	if q.allowDuplicates {
		return append([]domain.Track(nil), tracks...), nil
	}
	seen := make(map[string]struct{}, len(q.items)+len(tracks))
	for _, t := range q.items {
		seen[t.Identity()] = struct{}{}
	}
	out := make([]domain.Track, 0, len(tracks))
	for _, t := range tracks {
		id := t.Identity()
		if _, dup := seen[id]; dup {
			if atomic {
				return nil, domain.ErrDuplicateTrack
			}
			continue
		}
		seen[id] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

func (q *Queue) Dequeue() (domain.Track, error) {
	if len(q.items) == 0 {
		return domain.Track{}, domain.ErrEmptyQueue
	}
	t := q.items[0]
	q.items[0] = domain.Track{}
	q.items = q.items[1:]
	return t, nil
}

func (q *Queue) PeekNext() (domain.Track, bool) {
	if len(q.items) == 0 {
		return domain.Track{}, false
	}
	return q.items[0], true
}

// Remove saca el item en la posición i (0 = el próximo).
func (q *Queue) Remove(i int) (domain.Track, error) {
	if i < 0 || i >= len(q.items) {
		return domain.Track{}, domain.ErrIndexOutOfRange
	}
	t := q.items[i]
	q.items = append(q.items[:i], q.items[i+1:]...)
	return t, nil
}

func (q *Queue) Shuffle() {
	q.shuffle(len(q.items), func(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] })
}

func (q *Queue) Clear() { q.items = nil }

func (q *Queue) Len() int { return len(q.items) }

// Items devuelve una copia para mostrar.
func (q *Queue) Items() []domain.Track {
	return append([]domain.Track(nil), q.items...)
}
