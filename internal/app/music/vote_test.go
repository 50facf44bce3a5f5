package music

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

func TestQuorum_Table(t *testing.T) {
	cases := []struct {
		action Action
		k      int
		want   int
	}{
		{ActionSkip, 0, 1},
		{ActionSkip, 1, 1},
		{ActionSkip, 2, 1},
		{ActionSkip, 3, 1},
		{ActionStop, 3, 2},
		{ActionPause, 3, 1},
		{ActionStop, 4, 2},
		{ActionSkip, 4, 2},
		{ActionSkip, 6, 2},
		{ActionSkip, 7, 3},
		{ActionShuffle, 11, 4},
		{ActionResume, 12, 5},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Quorum(c.action, c.k), "%s k=%d", c.action, c.k)
	}
}

func TestProperty_QuorumArithmetic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("quorum = ceil((k-1)/2.5) salvo stop con 3", prop.ForAll(
		func(k int, a int) bool {
			action := Action(a)
			want := int(math.Ceil(float64(k-1) / 2.5))
			if action == ActionStop && k == 3 {
				want = 2
			}
			return Quorum(action, k) == want
		},
		gen.IntRange(2, 500),
		gen.IntRange(int(ActionPause), int(ActionStop)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestPrivileged(t *testing.T) {
	cur := &domain.Track{RequesterID: "req"}

	assert.True(t, privileged("dj", cur, domain.Member{ID: "dj"}, ActionStop))
	assert.True(t, privileged("dj", cur, domain.Member{ID: "mod", Moderator: true}, ActionPause))
	assert.True(t, privileged("dj", cur, domain.Member{ID: "req"}, ActionSkip))
	assert.False(t, privileged("dj", cur, domain.Member{ID: "req"}, ActionStop))
	assert.False(t, privileged("dj", cur, domain.Member{ID: "x"}, ActionSkip))
	assert.False(t, privileged("", nil, domain.Member{ID: ""}, ActionSkip))
}

func TestVoteSets_Independent(t *testing.T) {
	v := newVoteSets()
	assert.Equal(t, 1, v.add(ActionSkip, "u1"))
	assert.Equal(t, 1, v.add(ActionSkip, "u1"))
	v.add(ActionStop, "u1")
	v.add(ActionStop, "u2")

	v.clear(ActionSkip)
	assert.Zero(t, v.count(ActionSkip))
	assert.Equal(t, 2, v.count(ActionStop))
}
