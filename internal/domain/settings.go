package domain

import (
	"slices"
	"time"
)

// GuildConfig es la fila de guild_configs.
type GuildConfig struct {
	GuildID          string
	Prefixes         []string // el primero es el "canónico"
	DisabledCommands []string
	DisabledChannels []string
	AutoUnarchive    []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Clone copia los slices para que el cache nunca comparta memoria con quien lee.
func (g GuildConfig) Clone() GuildConfig {
	g.Prefixes = slices.Clone(g.Prefixes)
	g.DisabledCommands = slices.Clone(g.DisabledCommands)
	g.DisabledChannels = slices.Clone(g.DisabledChannels)
	g.AutoUnarchive = slices.Clone(g.AutoUnarchive)
	return g
}

// EffectivePrefixes: si la lista de la guild no está vacía pisa por completo a los default.
func (g GuildConfig) EffectivePrefixes(defaults []string) []string {
	if len(g.Prefixes) > 0 {
		return g.Prefixes
	}
	return defaults
}

func (g GuildConfig) CommandDisabled(name string) bool {
	return slices.Contains(g.DisabledCommands, name)
}

func (g GuildConfig) ChannelDisabled(channelID string) bool {
	return slices.Contains(g.DisabledChannels, channelID)
}

// GuildConfigPatch: nil = no tocar.
type GuildConfigPatch struct {
	Prefixes         *[]string
	DisabledCommands *[]string
	DisabledChannels *[]string
	AutoUnarchive    *[]string
}

func (p GuildConfigPatch) IsEmpty() bool {
	return p.Prefixes == nil && p.DisabledCommands == nil && p.DisabledChannels == nil && p.AutoUnarchive == nil
}

// GuildSetField son las columnas de tipo conjunto de guild_configs.
type GuildSetField string

const (
	FieldPrefixes         GuildSetField = "prefixes"
	FieldDisabledCommands GuildSetField = "disabled_commands"
	FieldDisabledChannels GuildSetField = "disabled_channels"
	FieldAutoUnarchive    GuildSetField = "auto_unarchive"
)

// VerificationConfig: un toggle sin rol/canal es un no-op en el punto de uso.
type VerificationConfig struct {
	GuildID   string
	Enabled   bool
	RoleID    *string
	ChannelID *string
	UpdatedAt time.Time
}

// En los patches un *string que apunta a "" limpia la columna (NULL).
type VerificationPatch struct {
	Enabled   *bool
	RoleID    *string
	ChannelID *string
}

// Ready reporta si la verificación está activa y configurada del todo.
func (v VerificationConfig) Ready() bool {
	return v.Enabled && v.RoleID != nil && *v.RoleID != ""
}

type LoggingConfig struct {
	GuildID       string
	Enabled       bool
	ChannelID     *string
	MemberEvents  bool
	MessageEvents bool
	ModEvents     bool
	UpdatedAt     time.Time
}

type LoggingPatch struct {
	Enabled       *bool
	ChannelID     *string
	MemberEvents  *bool
	MessageEvents *bool
	ModEvents     *bool
}

// Channel devuelve el canal de logs si logging está activo y configurado.
func (l LoggingConfig) Channel() (string, bool) {
	if !l.Enabled || l.ChannelID == nil || *l.ChannelID == "" {
		return "", false
	}
	return *l.ChannelID, true
}

type JoinLeaveConfig struct {
	GuildID      string
	JoinEnabled  bool
	LeaveEnabled bool
	ChannelID    *string
	JoinMessage  *string
	LeaveMessage *string
	UpdatedAt    time.Time
}

type JoinLeavePatch struct {
	JoinEnabled  *bool
	LeaveEnabled *bool
	ChannelID    *string
	JoinMessage  *string
	LeaveMessage *string
}

// Join devuelve canal y plantilla sólo si todo está configurado.
func (j JoinLeaveConfig) Join() (channelID, tmpl string, ok bool) {
	if !j.JoinEnabled || j.ChannelID == nil || j.JoinMessage == nil || *j.JoinMessage == "" {
		return "", "", false
	}
	return *j.ChannelID, *j.JoinMessage, true
}

func (j JoinLeaveConfig) Leave() (channelID, tmpl string, ok bool) {
	if !j.LeaveEnabled || j.ChannelID == nil || j.LeaveMessage == nil || *j.LeaveMessage == "" {
		return "", "", false
	}
	return *j.ChannelID, *j.LeaveMessage, true
}

type UserConfig struct {
	UserID     string
	Timezone   *string
	EmbedColor *int
	DMed       bool
	UpdatedAt  time.Time
}

// EmbedColor negativo limpia el color.
type UserConfigPatch struct {
	Timezone   *string
	EmbedColor *int
	DMed       *bool
}

type HighlightConfig struct {
	UserID   string
	Triggers []string
	Blocked  []string
}

func (h HighlightConfig) Clone() HighlightConfig {
	h.Triggers = slices.Clone(h.Triggers)
	h.Blocked = slices.Clone(h.Blocked)
	return h
}

// HighlightSetField son las columnas conjunto de highlights.
type HighlightSetField string

const (
	FieldTriggers HighlightSetField = "triggers"
	FieldBlocked  HighlightSetField = "blocked"
)

type BlacklistEntry struct {
	UserID    string
	Reason    string
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// Active indica si la entrada sigue vigente en now.
func (b BlacklistEntry) Active(now time.Time) bool {
	return b.ExpiresAt == nil || now.Before(*b.ExpiresAt)
}
