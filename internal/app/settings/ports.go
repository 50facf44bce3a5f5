package settings

import (
	"context"
	"time"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

// Lo implementa internal/infra/storage.GuildRepo
type GuildStore interface {
	Insert(ctx context.Context, guildID string) (domain.GuildConfig, error)
	Update(ctx context.Context, guildID string, p domain.GuildConfigPatch) (domain.GuildConfig, error)
	AddToSet(ctx context.Context, guildID string, f domain.GuildSetField, value string) (domain.GuildConfig, error)
	RemoveFromSet(ctx context.Context, guildID string, f domain.GuildSetField, value string) (domain.GuildConfig, error)
	Delete(ctx context.Context, guildID string) error
	List(ctx context.Context) ([]domain.GuildConfig, error)
}

// Lo implementan storage.VerificationRepo, LoggingRepo y JoinLeaveRepo.
type SubStore[T, P any] interface {
	Insert(ctx context.Context, guildID string) (T, error)
	Update(ctx context.Context, guildID string, p P) (T, error)
	Delete(ctx context.Context, guildID string) error
	List(ctx context.Context) ([]T, error)
}

// Lo implementa internal/infra/storage.UserConfigRepo
type UserStore interface {
	Insert(ctx context.Context, userID string) (domain.UserConfig, error)
	Update(ctx context.Context, userID string, p domain.UserConfigPatch) (domain.UserConfig, error)
	Delete(ctx context.Context, userID string) error
	List(ctx context.Context) ([]domain.UserConfig, error)
}

// Lo implementa internal/infra/storage.HighlightRepo
type HighlightStore interface {
	Insert(ctx context.Context, userID string) (domain.HighlightConfig, error)
	AddToSet(ctx context.Context, userID string, f domain.HighlightSetField, value string) (domain.HighlightConfig, error)
	RemoveFromSet(ctx context.Context, userID string, f domain.HighlightSetField, value string) (domain.HighlightConfig, error)
	Delete(ctx context.Context, userID string) error
	List(ctx context.Context) ([]domain.HighlightConfig, error)
}

// Lo implementa internal/infra/storage.BlacklistRepo
type BlacklistStore interface {
	Upsert(ctx context.Context, userID, reason string, expiresAt *time.Time) (domain.BlacklistEntry, error)
	Delete(ctx context.Context, userID string) error
	ListActive(ctx context.Context) ([]domain.BlacklistEntry, error)
}

// Stores junta todo lo que el Service escribe.
type Stores struct {
	Guilds       GuildStore
	Verification SubStore[domain.VerificationConfig, domain.VerificationPatch]
	Logging      SubStore[domain.LoggingConfig, domain.LoggingPatch]
	JoinLeave    SubStore[domain.JoinLeaveConfig, domain.JoinLeavePatch]
	Users        UserStore
	Highlights   HighlightStore
	Blacklist    BlacklistStore
}

// Recorder son las métricas del cache.
type Recorder interface {
	StoreWrite(op string, err error)
	CacheLoaded(kind string, n int)
}

type nopRecorder struct{}

func (nopRecorder) StoreWrite(string, error)  {}
func (nopRecorder) CacheLoaded(string, int) {}
