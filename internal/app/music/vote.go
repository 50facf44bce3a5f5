package music

import "github.com/jose-valero/alpine-bot/internal/domain"

// Action es un control que se puede votar.
type Action int

const (
	ActionPause Action = iota
	ActionResume
	ActionSkip
	ActionShuffle
	ActionStop
)

var actions = [...]Action{ActionPause, ActionResume, ActionSkip, ActionShuffle, ActionStop}

func (a Action) String() string {
	switch a {
	case ActionPause:
		return "pause"
	case ActionResume:
		return "resume"
	case ActionSkip:
		return "skip"
	case ActionShuffle:
		return "shuffle"
	case ActionStop:
		return "stop"
	}
	return "unknown"
}

// Quorum: votos necesarios con k miembros humanos en el canal, ceil((k-1)/2.5).
// Stop con exactamente 3 miembros pide 2 (ajuste heredado, se mantiene a propósito).
func Quorum(a Action, k int) int {
	if a == ActionStop && k == 3 {
		return 2
	}
	q := (2*(k-1) + 4) / 5
	if q < 1 {
		q = 1
	}
	return q
}

// VoteResult: si Executed es false el voto quedó registrado, Votes/Required para el "N/M".
type VoteResult struct {
	Action   Action
	Executed bool
	Bypass   bool // lo ejecutó alguien privilegiado
	Votes    int
	Required int
}

type voteSets map[Action]map[string]struct{}

func newVoteSets() voteSets {
	v := make(voteSets, len(actions))
	for _, a := range actions {
		v[a] = map[string]struct{}{}
	}
	return v
}

func (v voteSets) add(a Action, userID string) int {
	v[a][userID] = struct{}{}
	return len(v[a])
}

func (v voteSets) clear(a Action) { v[a] = map[string]struct{}{} }

func (v voteSets) count(a Action) int { return len(v[a]) }

// privileged es el único predicado de permisos: DJ o moderador. El que pidió el
// track actual además puede saltearlo.
func privileged(djID string, current *domain.Track, m domain.Member, a Action) bool {
	if m.Moderator || (djID != "" && m.ID == djID) {
		return true
	}
	return a == ActionSkip && current != nil && current.RequesterID != "" && current.RequesterID == m.ID
}

func humans(members []domain.Member) int {
	n := 0
	for _, m := range members {
		if !m.Bot {
			n++
		}
	}
	return n
}
