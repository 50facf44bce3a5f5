package settings

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

// fakeGuilds imita GuildRepo en memoria; fail hace fallar cualquier escritura.
type fakeGuilds struct {
	mu     sync.Mutex
	rows   map[string]domain.GuildConfig
	fail   error
	writes int
}

func newFakeGuilds() *fakeGuilds { return &fakeGuilds{rows: map[string]domain.GuildConfig{}} }

func (f *fakeGuilds) Insert(_ context.Context, id string) (domain.GuildConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return domain.GuildConfig{}, f.fail
	}
	f.writes++
	if g, ok := f.rows[id]; ok {
		return g.Clone(), nil
	}
	g := domain.GuildConfig{GuildID: id, CreatedAt: time.Now()}
	f.rows[id] = g
	return g.Clone(), nil
}

func (f *fakeGuilds) Update(_ context.Context, id string, p domain.GuildConfigPatch) (domain.GuildConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return domain.GuildConfig{}, f.fail
	}
	g, ok := f.rows[id]
	if !ok {
		return domain.GuildConfig{}, domain.ErrNotFound
	}
	f.writes++
	if p.Prefixes != nil {
		g.Prefixes = slices.Clone(*p.Prefixes)
	}
	if p.DisabledCommands != nil {
		g.DisabledCommands = slices.Clone(*p.DisabledCommands)
	}
	if p.DisabledChannels != nil {
		g.DisabledChannels = slices.Clone(*p.DisabledChannels)
	}
	if p.AutoUnarchive != nil {
		g.AutoUnarchive = slices.Clone(*p.AutoUnarchive)
	}
	f.rows[id] = g
	return g.Clone(), nil
}

func guildField(g *domain.GuildConfig, field domain.GuildSetField) *[]string {
	switch field {
	case domain.FieldPrefixes:
		return &g.Prefixes
	case domain.FieldDisabledCommands:
		return &g.DisabledCommands
	case domain.FieldDisabledChannels:
		return &g.DisabledChannels
	}
	return &g.AutoUnarchive
}

func (f *fakeGuilds) AddToSet(_ context.Context, id string, field domain.GuildSetField, v string) (domain.GuildConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return domain.GuildConfig{}, f.fail
	}
	g, ok := f.rows[id]
	if !ok {
		return domain.GuildConfig{}, domain.ErrNotFound
	}
	f.writes++
	g = g.Clone()
	if set := guildField(&g, field); !slices.Contains(*set, v) {
		*set = append(*set, v)
	}
	f.rows[id] = g
	return g.Clone(), nil
}

func (f *fakeGuilds) RemoveFromSet(_ context.Context, id string, field domain.GuildSetField, v string) (domain.GuildConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return domain.GuildConfig{}, f.fail
	}
	g, ok := f.rows[id]
	if !ok {
		return domain.GuildConfig{}, domain.ErrNotFound
	}
	f.writes++
	g = g.Clone()
	set := guildField(&g, field)
	*set = slices.DeleteFunc(*set, func(s string) bool { return s == v })
	f.rows[id] = g
	return g.Clone(), nil
}

func (f *fakeGuilds) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeGuilds) List(context.Context) ([]domain.GuildConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.GuildConfig
	for _, g := range f.rows {
		out = append(out, g.Clone())
	}
	return out, nil
}

// fakeSub sirve para verification/logging/join_leave.
type fakeSub[T, P any] struct {
	mu    sync.Mutex
	rows  map[string]T
	mk    func(id string) T
	apply func(T, P) T
	fail  error
}

func newFakeSub[T, P any](mk func(string) T, apply func(T, P) T) *fakeSub[T, P] {
	return &fakeSub[T, P]{rows: map[string]T{}, mk: mk, apply: apply}
}

func (f *fakeSub[T, P]) Insert(_ context.Context, id string) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		var zero T
		return zero, f.fail
	}
	if v, ok := f.rows[id]; ok {
		return v, nil
	}
	v := f.mk(id)
	f.rows[id] = v
	return v, nil
}

func (f *fakeSub[T, P]) Update(_ context.Context, id string, p P) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var zero T
	if f.fail != nil {
		return zero, f.fail
	}
	v, ok := f.rows[id]
	if !ok {
		return zero, domain.ErrNotFound
	}
	v = f.apply(v, p)
	f.rows[id] = v
	return v, nil
}

func (f *fakeSub[T, P]) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeSub[T, P]) List(context.Context) ([]T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []T
	for _, v := range f.rows {
		out = append(out, v)
	}
	return out, nil
}

func strOrNil(s *string) *string {
	if *s == "" {
		return nil
	}
	v := *s
	return &v
}

type fakeUsers struct {
	mu   sync.Mutex
	rows map[string]domain.UserConfig
	fail error
}

func (f *fakeUsers) Insert(_ context.Context, id string) (domain.UserConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return domain.UserConfig{}, f.fail
	}
	if u, ok := f.rows[id]; ok {
		return u, nil
	}
	u := domain.UserConfig{UserID: id}
	f.rows[id] = u
	return u, nil
}

func (f *fakeUsers) Update(_ context.Context, id string, p domain.UserConfigPatch) (domain.UserConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return domain.UserConfig{}, f.fail
	}
	u, ok := f.rows[id]
	if !ok {
		return domain.UserConfig{}, domain.ErrNotFound
	}
	if p.Timezone != nil {
		u.Timezone = strOrNil(p.Timezone)
	}
	if p.EmbedColor != nil {
		if *p.EmbedColor < 0 {
			u.EmbedColor = nil
		} else {
			c := *p.EmbedColor
			u.EmbedColor = &c
		}
	}
	if p.DMed != nil {
		u.DMed = *p.DMed
	}
	f.rows[id] = u
	return u, nil
}

func (f *fakeUsers) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	delete(f.rows, id)
	return nil
}

// drop borra la fila sin pasar por el Service, como lo hace el janitor.
func (f *fakeUsers) drop(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
}

func (f *fakeUsers) List(context.Context) ([]domain.UserConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.UserConfig
	for _, u := range f.rows {
		out = append(out, u)
	}
	return out, nil
}

type fakeHighlights struct {
	mu   sync.Mutex
	rows map[string]domain.HighlightConfig
	fail error
}

func (f *fakeHighlights) Insert(_ context.Context, id string) (domain.HighlightConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return domain.HighlightConfig{}, f.fail
	}
	if h, ok := f.rows[id]; ok {
		return h.Clone(), nil
	}
	h := domain.HighlightConfig{UserID: id}
	f.rows[id] = h
	return h, nil
}

func (f *fakeHighlights) set(h *domain.HighlightConfig, field domain.HighlightSetField) *[]string {
	if field == domain.FieldTriggers {
		return &h.Triggers
	}
	return &h.Blocked
}

func (f *fakeHighlights) AddToSet(_ context.Context, id string, field domain.HighlightSetField, v string) (domain.HighlightConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return domain.HighlightConfig{}, f.fail
	}
	h, ok := f.rows[id]
	if !ok {
		return domain.HighlightConfig{}, domain.ErrNotFound
	}
	h = h.Clone()
	if s := f.set(&h, field); !slices.Contains(*s, v) {
		*s = append(*s, v)
	}
	f.rows[id] = h
	return h.Clone(), nil
}

func (f *fakeHighlights) RemoveFromSet(_ context.Context, id string, field domain.HighlightSetField, v string) (domain.HighlightConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return domain.HighlightConfig{}, f.fail
	}
	h, ok := f.rows[id]
	if !ok {
		return domain.HighlightConfig{}, domain.ErrNotFound
	}
	h = h.Clone()
	s := f.set(&h, field)
	*s = slices.DeleteFunc(*s, func(x string) bool { return x == v })
	f.rows[id] = h
	return h.Clone(), nil
}

func (f *fakeHighlights) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeHighlights) drop(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
}

func (f *fakeHighlights) List(context.Context) ([]domain.HighlightConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.HighlightConfig
	for _, h := range f.rows {
		if len(h.Triggers) > 0 {
			out = append(out, h.Clone())
		}
	}
	return out, nil
}

type fakeBlacklist struct {
	mu   sync.Mutex
	rows map[string]domain.BlacklistEntry
	fail error
}

func (f *fakeBlacklist) Upsert(_ context.Context, id, reason string, exp *time.Time) (domain.BlacklistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return domain.BlacklistEntry{}, f.fail
	}
	b := domain.BlacklistEntry{UserID: id, Reason: reason, CreatedAt: time.Now(), ExpiresAt: exp}
	f.rows[id] = b
	return b, nil
}

func (f *fakeBlacklist) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	if _, ok := f.rows[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeBlacklist) ListActive(context.Context) ([]domain.BlacklistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.BlacklistEntry
	now := time.Now()
	for _, b := range f.rows {
		if b.Active(now) {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakes struct {
	guilds     *fakeGuilds
	verif      *fakeSub[domain.VerificationConfig, domain.VerificationPatch]
	logging    *fakeSub[domain.LoggingConfig, domain.LoggingPatch]
	joinLeave  *fakeSub[domain.JoinLeaveConfig, domain.JoinLeavePatch]
	users      *fakeUsers
	highlights *fakeHighlights
	blacklist  *fakeBlacklist
}

func newFakes() *fakes {
	return &fakes{
		guilds: newFakeGuilds(),
		verif: newFakeSub(
			func(id string) domain.VerificationConfig { return domain.VerificationConfig{GuildID: id} },
			func(v domain.VerificationConfig, p domain.VerificationPatch) domain.VerificationConfig {
				if p.Enabled != nil {
					v.Enabled = *p.Enabled
				}
				if p.RoleID != nil {
					v.RoleID = strOrNil(p.RoleID)
				}
				if p.ChannelID != nil {
					v.ChannelID = strOrNil(p.ChannelID)
				}
				return v
			},
		),
		logging: newFakeSub(
			func(id string) domain.LoggingConfig {
				return domain.LoggingConfig{GuildID: id, MemberEvents: true, MessageEvents: true, ModEvents: true}
			},
			func(l domain.LoggingConfig, p domain.LoggingPatch) domain.LoggingConfig {
				if p.Enabled != nil {
					l.Enabled = *p.Enabled
				}
				if p.ChannelID != nil {
					l.ChannelID = strOrNil(p.ChannelID)
				}
				return l
			},
		),
		joinLeave: newFakeSub(
			func(id string) domain.JoinLeaveConfig { return domain.JoinLeaveConfig{GuildID: id} },
			func(j domain.JoinLeaveConfig, p domain.JoinLeavePatch) domain.JoinLeaveConfig {
				if p.JoinEnabled != nil {
					j.JoinEnabled = *p.JoinEnabled
				}
				if p.ChannelID != nil {
					j.ChannelID = strOrNil(p.ChannelID)
				}
				if p.JoinMessage != nil {
					j.JoinMessage = strOrNil(p.JoinMessage)
				}
				return j
			},
		),
		users:      &fakeUsers{rows: map[string]domain.UserConfig{}},
		highlights: &fakeHighlights{rows: map[string]domain.HighlightConfig{}},
		blacklist:  &fakeBlacklist{rows: map[string]domain.BlacklistEntry{}},
	}
}

func (f *fakes) stores() Stores {
	return Stores{
		Guilds:       f.guilds,
		Verification: f.verif,
		Logging:      f.logging,
		JoinLeave:    f.joinLeave,
		Users:        f.users,
		Highlights:   f.highlights,
		Blacklist:    f.blacklist,
	}
}
