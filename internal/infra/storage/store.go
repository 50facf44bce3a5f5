package storage

import "database/sql"

// Store agrupa los repos sobre el mismo *sql.DB.
type Store struct {
	Guilds       *GuildRepo
	Verification *VerificationRepo
	Logging      *LoggingRepo
	JoinLeave    *JoinLeaveRepo
	Users        *UserConfigRepo
	Highlights   *HighlightRepo
	Blacklist    *BlacklistRepo
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		Guilds:       NewGuildRepo(db),
		Verification: NewVerificationRepo(db),
		Logging:      NewLoggingRepo(db),
		JoinLeave:    NewJoinLeaveRepo(db),
		Users:        NewUserConfigRepo(db),
		Highlights:   NewHighlightRepo(db),
		Blacklist:    NewBlacklistRepo(db),
	}
}
