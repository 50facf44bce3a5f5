package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/jose-valero/alpine-bot/internal/app/music"
	"github.com/jose-valero/alpine-bot/internal/app/settings"
)

// Node es la parte del cliente del nodo de audio que escucha el handshake de voz.
type Node interface {
	VoiceStateUpdate(ctx context.Context, guildID, sessionID string) error
	VoiceServerUpdate(ctx context.Context, guildID, token, endpoint string) error
}

type Recorder interface {
	Command(name, source string, err error)
}

type nopRecorder struct{}

func (nopRecorder) Command(string, string, error) {}

type RouterConfig struct {
	// DevGuildID registra los slash sólo en esa guild (aparecen al instante)
	DevGuildID string
	OwnerIDs   []string
	// CommandRate es cada cuánto recupera un token un usuario
	CommandRate  time.Duration
	CommandBurst int
}

type Router struct {
	s   *discordgo.Session
	log *zap.Logger
	cfg RouterConfig

	owners   map[string]struct{}
	music    *music.Registry
	settings *settings.Service
	voice    *Voice
	node     Node
	rec      Recorder

	limiter   *userLimiter
	hlLimiter *userLimiter

	list     []*Command
	commands map[string]*Command // nombre y alias
}

type RouterOption func(*Router)

func WithLogger(l *zap.Logger) RouterOption { return func(r *Router) { r.log = l } }

func WithRecorder(rec Recorder) RouterOption { return func(r *Router) { r.rec = rec } }

func NewRouter(
	s *discordgo.Session,
	cfg RouterConfig,
	reg *music.Registry,
	set *settings.Service,
	voice *Voice,
	node Node,
	opts ...RouterOption,
) *Router {
	if cfg.CommandRate <= 0 {
		cfg.CommandRate = 2 * time.Second
	}
	if cfg.CommandBurst <= 0 {
		cfg.CommandBurst = 3
	}
	r := &Router{
		s:        s,
		log:      zap.NewNop(),
		cfg:      cfg,
		owners:   map[string]struct{}{},
		music:    reg,
		settings: set,
		voice:    voice,
		node:     node,
		rec:      nopRecorder{},
		limiter:  newUserLimiter(cfg.CommandRate, cfg.CommandBurst),
		// un DM de highlight por usuario cada 30s como mucho
		hlLimiter: newUserLimiter(30*time.Second, 1),
	}
	for _, o := range opts {
		o(r)
	}
	for _, id := range cfg.OwnerIDs {
		r.owners[id] = struct{}{}
	}
	r.setCommands(r.buildCommands())
	return r
}

func (r *Router) setCommands(list []*Command) {
	r.list = list
	r.commands = make(map[string]*Command, len(list)*2)
	for _, cmd := range list {
		r.commands[cmd.Name] = cmd
		for _, a := range cmd.Aliases {
			r.commands[a] = cmd
		}
	}
}

// Register pisa los slash registrados con los de esta versión.
func (r *Router) Register() error {
	if r.s.State == nil || r.s.State.User == nil {
		return fmt.Errorf("register: sesión sin usuario (¿Open?)")
	}
	appID := r.s.State.User.ID
	if _, err := r.s.ApplicationCommandBulkOverwrite(appID, r.cfg.DevGuildID, slashCommands(r.list)); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	r.log.Info("comandos registrados", zap.Int("n", len(r.list)), zap.String("guild", r.cfg.DevGuildID))
	return nil
}

// Handlers engancha todo al gateway.
func (r *Router) Handlers() {
	r.s.AddHandler(r.onInteraction)
	r.s.AddHandler(r.onMessageCreate)
	r.s.AddHandler(r.onGuildCreate)
	r.s.AddHandler(r.onGuildDelete)
	r.s.AddHandler(r.onVoiceStateUpdate)
	r.s.AddHandler(r.onVoiceServerUpdate)
	r.s.AddHandler(r.onGuildMemberAdd)
	r.s.AddHandler(r.onGuildMemberRemove)
	r.s.AddHandler(r.onGuildBanAdd)
	r.s.AddHandler(r.onMessageDelete)
	r.s.AddHandler(r.onThreadUpdate)
}

func (r *Router) onInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	switch ic.Type {
	case discordgo.InteractionApplicationCommand:
		r.handleSlashCommand(ic)
	case discordgo.InteractionMessageComponent:
		r.handleMessageComponent(ic)
	}
}

func (r *Router) botID() string {
	if r.s.State == nil || r.s.State.User == nil {
		return ""
	}
	return r.s.State.User.ID
}

// recovered es el guard de los handlers del gateway.
func (r *Router) recovered(event string) {
	if rec := recover(); rec != nil {
		r.log.Error("panic en handler", zap.String("event", event), zap.Any("panic", rec), zap.Stack("stack"))
	}
}
