package settings

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

const (
	MaxPrefixes   = 10
	MaxPrefixLen  = 15
	MaxTriggers   = 20
	MaxTriggerLen = 50
)

// Service es el write-through: primero el store, y sólo si salió bien el cache.
// Las escrituras de una misma guild/usuario se serializan para que el cache
// aplique los resultados en el mismo orden en que el store los commiteó.
type Service struct {
	st       Stores
	cache    *Cache
	locks    keyedMutex
	log      *zap.Logger
	rec      Recorder
	now      func() time.Time
	defaults []string
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

func WithRecorder(r Recorder) Option { return func(s *Service) { s.rec = r } }

// WithDefaultPrefixes son los prefijos cuando la guild no tiene propios.
func WithDefaultPrefixes(p []string) Option {
	return func(s *Service) { s.defaults = slices.Clone(p) }
}

func NewService(st Stores, cache *Cache, opts ...Option) *Service {
	s := &Service{
		st:       st,
		cache:    cache,
		log:      zap.NewNop(),
		rec:      nopRecorder{},
		now:      time.Now,
		defaults: []string{"a!"},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Cache() *Cache { return s.cache }

// Load llena el cache con un scan completo de cada tabla (en paralelo).
func (s *Service) Load(ctx context.Context) error {
	var (
		guilds     []domain.GuildConfig
		verif      []domain.VerificationConfig
		logging    []domain.LoggingConfig
		joinLeave  []domain.JoinLeaveConfig
		users      []domain.UserConfig
		highlights []domain.HighlightConfig
		blacklist  []domain.BlacklistEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { guilds, err = s.st.Guilds.List(gctx); return wrap("guilds", err) })
	g.Go(func() (err error) { verif, err = s.st.Verification.List(gctx); return wrap("verification", err) })
	g.Go(func() (err error) { logging, err = s.st.Logging.List(gctx); return wrap("logging", err) })
	g.Go(func() (err error) { joinLeave, err = s.st.JoinLeave.List(gctx); return wrap("join_leave", err) })
	g.Go(func() (err error) { users, err = s.st.Users.List(gctx); return wrap("users", err) })
	g.Go(func() (err error) { highlights, err = s.st.Highlights.List(gctx); return wrap("highlights", err) })
	g.Go(func() (err error) { blacklist, err = s.st.Blacklist.ListActive(gctx); return wrap("blacklist", err) })
	if err := g.Wait(); err != nil {
		return err
	}

	fill(s.cache.guilds, guilds, func(v domain.GuildConfig) string { return v.GuildID })
	fill(s.cache.verification, verif, func(v domain.VerificationConfig) string { return v.GuildID })
	fill(s.cache.logging, logging, func(v domain.LoggingConfig) string { return v.GuildID })
	fill(s.cache.joinLeave, joinLeave, func(v domain.JoinLeaveConfig) string { return v.GuildID })
	fill(s.cache.users, users, func(v domain.UserConfig) string { return v.UserID })
	fill(s.cache.highlights, highlights, func(v domain.HighlightConfig) string { return v.UserID })
	fill(s.cache.blacklist, blacklist, func(v domain.BlacklistEntry) string { return v.UserID })

	st := s.cache.Stats()
	s.rec.CacheLoaded("guilds", st.Guilds)
	s.rec.CacheLoaded("users", st.Users)
	s.rec.CacheLoaded("highlights", st.Highlights)
	s.rec.CacheLoaded("blacklist", st.Blacklist)
	s.log.Info("cache cargado",
		zap.Int("guilds", st.Guilds), zap.Int("users", st.Users),
		zap.Int("highlights", st.Highlights), zap.Int("blacklist", st.Blacklist))
	return nil
}

func wrap(what string, err error) error {
	if err != nil {
		return fmt.Errorf("load %s: %w", what, err)
	}
	return nil
}

func fill[T any](t *table[T], rows []T, key func(T) string) {
	m := make(map[string]T, len(rows))
	for _, r := range rows {
		m[key(r)] = t.clone(r)
	}
	t.replace(m)
}

// written registra el resultado de una escritura al store.
func (s *Service) written(op, key string, err error) error {
	s.rec.StoreWrite(op, err)
	if err != nil {
		s.log.Warn("store write", zap.String("op", op), zap.String("key", key), zap.Error(err))
		return fmt.Errorf("%s %s: %w", op, key, err)
	}
	return nil
}

// retryMissing corre write y, si el store ya no tiene la fila que el cache
// daba por existente (el janitor borra filas vacías), saca la entrada,
// recrea la fila y reintenta una vez.
func retryMissing[T, C any](tbl *table[C], key string, recreate func() (C, error), write func() (T, error)) (T, error) {
	v, err := write()
	if !errors.Is(err, domain.ErrNotFound) {
		return v, err
	}
	tbl.delete(key)
	row, err := recreate()
	if err != nil {
		var zero T
		return zero, err
	}
	tbl.putIfAbsent(key, row)
	return write()
}

// ---- guilds ----

// Prefixes devuelve los prefijos efectivos de la guild (los default si no tiene).
func (s *Service) Prefixes(guildID string) []string {
	if g, ok := s.cache.Guild(guildID); ok {
		return slices.Clone(g.EffectivePrefixes(s.defaults))
	}
	return slices.Clone(s.defaults)
}

// EnsureGuild es el fetch-and-insert en dos fases: store y después cache.
func (s *Service) EnsureGuild(ctx context.Context, guildID string) (domain.GuildConfig, error) {
	if g, ok := s.cache.Guild(guildID); ok {
		return g, nil
	}
	unlock := s.locks.lock("guild:" + guildID)
	defer unlock()
	return s.ensureGuildLocked(ctx, guildID)
}

func (s *Service) ensureGuildLocked(ctx context.Context, guildID string) (domain.GuildConfig, error) {
	if g, ok := s.cache.Guild(guildID); ok {
		return g, nil
	}
	g, err := s.st.Guilds.Insert(ctx, guildID)
	if err := s.written("guild.insert", guildID, err); err != nil {
		return domain.GuildConfig{}, err
	}
	return s.cache.guilds.putIfAbsent(guildID, g), nil
}

// UpdateGuild aplica un patch; la guild tiene que existir (ErrNotFound si no).
func (s *Service) UpdateGuild(ctx context.Context, guildID string, p domain.GuildConfigPatch) (domain.GuildConfig, error) {
	unlock := s.locks.lock("guild:" + guildID)
	defer unlock()

	g, err := s.st.Guilds.Update(ctx, guildID, p)
	if err := s.written("guild.update", guildID, err); err != nil {
		return domain.GuildConfig{}, err
	}
	s.cache.guilds.put(guildID, g)
	return g, nil
}

// AddToGuildSet agrega value al conjunto f de la guild, creándola si hace falta.
func (s *Service) AddToGuildSet(ctx context.Context, guildID string, f domain.GuildSetField, value string) (domain.GuildConfig, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return domain.GuildConfig{}, domain.ErrInvalidValue
	}
	unlock := s.locks.lock("guild:" + guildID)
	defer unlock()

	cur, err := s.ensureGuildLocked(ctx, guildID)
	if err != nil {
		return domain.GuildConfig{}, err
	}
	if f == domain.FieldPrefixes {
		if err := validPrefix(value); err != nil {
			return cur, err
		}
		if len(cur.Prefixes) >= MaxPrefixes && !slices.Contains(cur.Prefixes, value) {
			return cur, domain.ErrLimitReached
		}
	}

	g, err := s.st.Guilds.AddToSet(ctx, guildID, f, value)
	if err := s.written("guild.add_"+string(f), guildID, err); err != nil {
		return domain.GuildConfig{}, err
	}
	s.cache.guilds.put(guildID, g)
	return g, nil
}

func (s *Service) RemoveFromGuildSet(ctx context.Context, guildID string, f domain.GuildSetField, value string) (domain.GuildConfig, error) {
	unlock := s.locks.lock("guild:" + guildID)
	defer unlock()

	if _, err := s.ensureGuildLocked(ctx, guildID); err != nil {
		return domain.GuildConfig{}, err
	}
	g, err := s.st.Guilds.RemoveFromSet(ctx, guildID, f, strings.TrimSpace(value))
	if err := s.written("guild.remove_"+string(f), guildID, err); err != nil {
		return domain.GuildConfig{}, err
	}
	s.cache.guilds.put(guildID, g)
	return g, nil
}

// RemoveGuild borra la guild y sus sub-registros del store y del cache.
func (s *Service) RemoveGuild(ctx context.Context, guildID string) error {
	unlock := s.locks.lock("guild:" + guildID)
	defer unlock()

	err := s.st.Guilds.Delete(ctx, guildID)
	if err := s.written("guild.delete", guildID, err); err != nil {
		return err
	}
	s.cache.dropGuild(guildID)
	return nil
}

func validPrefix(p string) error {
	if utf8.RuneCountInString(p) > MaxPrefixLen || strings.IndexFunc(p, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: prefijo %q", domain.ErrInvalidValue, p)
	}
	return nil
}

// ---- sub-registros de guild ----

// updateSub asegura guild + sub-registro y aplica el patch. Requiere el lock de la guild.
func updateSub[T, P any](ctx context.Context, s *Service, op, guildID string, store SubStore[T, P], tbl *table[T], p P) (T, error) {
	var zero T
	if _, err := s.ensureGuildLocked(ctx, guildID); err != nil {
		return zero, err
	}
	if _, ok := tbl.get(guildID); !ok {
		v, err := store.Insert(ctx, guildID)
		if err := s.written(op+".insert", guildID, err); err != nil {
			return zero, err
		}
		tbl.putIfAbsent(guildID, v)
	}
	v, err := retryMissing(tbl, guildID,
		func() (T, error) { return store.Insert(ctx, guildID) },
		func() (T, error) { return store.Update(ctx, guildID, p) })
	if err := s.written(op+".update", guildID, err); err != nil {
		return zero, err
	}
	tbl.put(guildID, v)
	return v, nil
}

func (s *Service) UpdateVerification(ctx context.Context, guildID string, p domain.VerificationPatch) (domain.VerificationConfig, error) {
	unlock := s.locks.lock("guild:" + guildID)
	defer unlock()
	return updateSub(ctx, s, "verification", guildID, s.st.Verification, s.cache.verification, p)
}

func (s *Service) UpdateLogging(ctx context.Context, guildID string, p domain.LoggingPatch) (domain.LoggingConfig, error) {
	unlock := s.locks.lock("guild:" + guildID)
	defer unlock()
	return updateSub(ctx, s, "logging", guildID, s.st.Logging, s.cache.logging, p)
}

func (s *Service) UpdateJoinLeave(ctx context.Context, guildID string, p domain.JoinLeavePatch) (domain.JoinLeaveConfig, error) {
	unlock := s.locks.lock("guild:" + guildID)
	defer unlock()
	return updateSub(ctx, s, "join_leave", guildID, s.st.JoinLeave, s.cache.joinLeave, p)
}

// deleteSub borra el sub-registro; la próxima escritura lo recrea con defaults.
func deleteSub[T, P any](ctx context.Context, s *Service, op, guildID string, store SubStore[T, P], tbl *table[T]) error {
	unlock := s.locks.lock("guild:" + guildID)
	defer unlock()

	err := store.Delete(ctx, guildID)
	if err := s.written(op+".delete", guildID, err); err != nil {
		return err
	}
	tbl.delete(guildID)
	return nil
}

func (s *Service) DeleteVerification(ctx context.Context, guildID string) error {
	return deleteSub(ctx, s, "verification", guildID, s.st.Verification, s.cache.verification)
}

func (s *Service) DeleteLogging(ctx context.Context, guildID string) error {
	return deleteSub(ctx, s, "logging", guildID, s.st.Logging, s.cache.logging)
}

func (s *Service) DeleteJoinLeave(ctx context.Context, guildID string) error {
	return deleteSub(ctx, s, "join_leave", guildID, s.st.JoinLeave, s.cache.joinLeave)
}

// ---- usuarios ----

// EnsureUser crea el registro del usuario la primera vez que hace falta.
func (s *Service) EnsureUser(ctx context.Context, userID string) (domain.UserConfig, error) {
	if u, ok := s.cache.User(userID); ok {
		return u, nil
	}
	unlock := s.locks.lock("user:" + userID)
	defer unlock()
	return s.ensureUserLocked(ctx, userID)
}

func (s *Service) ensureUserLocked(ctx context.Context, userID string) (domain.UserConfig, error) {
	if u, ok := s.cache.User(userID); ok {
		return u, nil
	}
	u, err := s.st.Users.Insert(ctx, userID)
	if err := s.written("user.insert", userID, err); err != nil {
		return domain.UserConfig{}, err
	}
	return s.cache.users.putIfAbsent(userID, u), nil
}

func (s *Service) UpdateUser(ctx context.Context, userID string, p domain.UserConfigPatch) (domain.UserConfig, error) {
	if p.Timezone != nil && *p.Timezone != "" {
		if _, err := time.LoadLocation(*p.Timezone); err != nil {
			return domain.UserConfig{}, fmt.Errorf("%w: timezone %q", domain.ErrInvalidValue, *p.Timezone)
		}
	}
	if p.EmbedColor != nil && *p.EmbedColor > 0xFFFFFF {
		return domain.UserConfig{}, fmt.Errorf("%w: color", domain.ErrInvalidValue)
	}
	unlock := s.locks.lock("user:" + userID)
	defer unlock()

	if _, err := s.ensureUserLocked(ctx, userID); err != nil {
		return domain.UserConfig{}, err
	}
	u, err := retryMissing(s.cache.users, userID,
		func() (domain.UserConfig, error) { return s.st.Users.Insert(ctx, userID) },
		func() (domain.UserConfig, error) { return s.st.Users.Update(ctx, userID, p) })
	if err := s.written("user.update", userID, err); err != nil {
		return domain.UserConfig{}, err
	}
	s.cache.users.put(userID, u)
	return u, nil
}

// DeleteUser borra la configuración del usuario (vuelve a los defaults).
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	unlock := s.locks.lock("user:" + userID)
	defer unlock()

	err := s.st.Users.Delete(ctx, userID)
	if err := s.written("user.delete", userID, err); err != nil {
		return err
	}
	s.cache.users.delete(userID)
	return nil
}

// ---- highlights ----

func (s *Service) AddHighlight(ctx context.Context, userID string, f domain.HighlightSetField, value string) (domain.HighlightConfig, error) {
	if f == domain.FieldTriggers {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" || utf8.RuneCountInString(value) > MaxTriggerLen {
			return domain.HighlightConfig{}, domain.ErrInvalidValue
		}
	}
	unlock := s.locks.lock("highlight:" + userID)
	defer unlock()

	cur, ok := s.cache.Highlight(userID)
	if !ok {
		h, err := s.st.Highlights.Insert(ctx, userID)
		if err := s.written("highlight.insert", userID, err); err != nil {
			return domain.HighlightConfig{}, err
		}
		cur = s.cache.highlights.putIfAbsent(userID, h)
	}
	if f == domain.FieldTriggers && len(cur.Triggers) >= MaxTriggers && !slices.Contains(cur.Triggers, value) {
		return cur, domain.ErrLimitReached
	}

	h, err := retryMissing(s.cache.highlights, userID,
		func() (domain.HighlightConfig, error) { return s.st.Highlights.Insert(ctx, userID) },
		func() (domain.HighlightConfig, error) { return s.st.Highlights.AddToSet(ctx, userID, f, value) })
	if err := s.written("highlight.add_"+string(f), userID, err); err != nil {
		return domain.HighlightConfig{}, err
	}
	s.cache.highlights.put(userID, h)
	return h, nil
}

func (s *Service) RemoveHighlight(ctx context.Context, userID string, f domain.HighlightSetField, value string) (domain.HighlightConfig, error) {
	if f == domain.FieldTriggers {
		value = strings.ToLower(strings.TrimSpace(value))
	}
	unlock := s.locks.lock("highlight:" + userID)
	defer unlock()

	if _, ok := s.cache.Highlight(userID); !ok {
		return domain.HighlightConfig{}, domain.ErrNotFound
	}
	h, err := s.st.Highlights.RemoveFromSet(ctx, userID, f, value)
	if errors.Is(err, domain.ErrNotFound) {
		// la fila ya no está: no hay nada que sacar
		s.cache.highlights.delete(userID)
	}
	if err := s.written("highlight.remove_"+string(f), userID, err); err != nil {
		return domain.HighlightConfig{}, err
	}
	s.cache.highlights.put(userID, h)
	return h, nil
}

// DeleteHighlights borra triggers y bloqueos del usuario de una vez.
func (s *Service) DeleteHighlights(ctx context.Context, userID string) error {
	unlock := s.locks.lock("highlight:" + userID)
	defer unlock()

	err := s.st.Highlights.Delete(ctx, userID)
	if err := s.written("highlight.delete", userID, err); err != nil {
		return err
	}
	s.cache.highlights.delete(userID)
	return nil
}

// MatchHighlights devuelve a quién avisar por un mensaje de authorID. No incluye
// al autor ni a quien lo tenga bloqueado.
func (s *Service) MatchHighlights(content, authorID string) []string {
	content = strings.ToLower(content)
	var out []string
	for _, h := range s.cache.Highlights() {
		if h.UserID == authorID || slices.Contains(h.Blocked, authorID) {
			continue
		}
		for _, t := range h.Triggers {
			if containsWord(content, t) {
				out = append(out, h.UserID)
				break
			}
		}
	}
	slices.Sort(out)
	return out
}

// containsWord busca needle en s con bordes de palabra a los dos lados.
func containsWord(s, needle string) bool {
	if needle == "" {
		return false
	}
	for off := 0; off <= len(s)-len(needle); {
		i := strings.Index(s[off:], needle)
		if i < 0 {
			return false
		}
		start, end := off+i, off+i+len(needle)
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(s) || !isWordRune(after)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		off = start + size
	}
	return false
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' }

// ---- blacklist ----

// Blacklist bloquea a userID; ttl 0 = para siempre.
func (s *Service) Blacklist(ctx context.Context, userID, reason string, ttl time.Duration) (domain.BlacklistEntry, error) {
	var exp *time.Time
	if ttl > 0 {
		t := s.now().Add(ttl)
		exp = &t
	}
	unlock := s.locks.lock("blacklist:" + userID)
	defer unlock()

	b, err := s.st.Blacklist.Upsert(ctx, userID, reason, exp)
	if err := s.written("blacklist.upsert", userID, err); err != nil {
		return domain.BlacklistEntry{}, err
	}
	s.cache.blacklist.put(userID, b)
	return b, nil
}

func (s *Service) Unblacklist(ctx context.Context, userID string) error {
	unlock := s.locks.lock("blacklist:" + userID)
	defer unlock()

	err := s.st.Blacklist.Delete(ctx, userID)
	if err := s.written("blacklist.delete", userID, err); err != nil {
		return err
	}
	s.cache.blacklist.delete(userID)
	return nil
}

func (s *Service) IsBlacklisted(userID string) bool {
	return s.cache.Blacklisted(userID, s.now())
}

// ---- locks por clave ----

type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// lock toma el mutex de key y devuelve el unlock. Las entradas se liberan
// cuando nadie las usa.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.m == nil {
		k.m = map[string]*keyedEntry{}
	}
	e, ok := k.m[key]
	if !ok {
		e = &keyedEntry{}
		k.m[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}
