package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jose-valero/alpine-bot/internal/adapters/audionode"
	discordrouter "github.com/jose-valero/alpine-bot/internal/adapters/discord"
	"github.com/jose-valero/alpine-bot/internal/adapters/httpstatus"
	"github.com/jose-valero/alpine-bot/internal/app/music"
	"github.com/jose-valero/alpine-bot/internal/app/settings"
	"github.com/jose-valero/alpine-bot/internal/infra/config"
	"github.com/jose-valero/alpine-bot/internal/infra/logger"
	"github.com/jose-valero/alpine-bot/internal/infra/metrics"
	"github.com/jose-valero/alpine-bot/internal/infra/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("bot", zap.Error(err))
	}
}

func run(cfg config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := storage.Open(ctx, cfg.DatabaseURL, storage.DefaultPool, lg.Named("db"))
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.Migrate(ctx, db, lg.Named("db")); err != nil {
		return err
	}
	lg.Info("✅ DB lista y migrada")

	m := metrics.New()

	// Settings: se carga todo al cache antes de conectar
	st := storage.NewStore(db)
	set := settings.NewService(settings.Stores{
		Guilds:       st.Guilds,
		Verification: st.Verification,
		Logging:      st.Logging,
		JoinLeave:    st.JoinLeave,
		Users:        st.Users,
		Highlights:   st.Highlights,
		Blacklist:    st.Blacklist,
	}, settings.NewCache(),
		settings.WithLogger(lg.Named("settings")),
		settings.WithRecorder(m),
		settings.WithDefaultPrefixes(cfg.Prefixes),
	)
	if err := set.Load(ctx); err != nil {
		return err
	}

	node := audionode.New(cfg.LavalinkBaseURL(), cfg.LavalinkPassword, audionode.WithLogger(lg.Named("node")))

	// Discord
	auth := cfg.DiscordToken
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(auth)), "bot ") {
		auth = "Bot " + strings.TrimSpace(auth)
	}
	s, err := discordgo.New(auth)
	if err != nil {
		return err
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans
	// para loguear el contenido de los mensajes borrados
	s.State.MaxMessageCount = 100

	voice := discordrouter.NewVoice(s)
	reg := music.NewRegistry(node, voice, voice, discordrouter.NewNotifier(s, lg.Named("notify")),
		music.WithLogger(lg.Named("music")),
		music.WithRecorder(m),
		music.WithGrace(cfg.EmptyChannelGrace),
	)
	node.OnEvent(reg.Dispatch)

	r := discordrouter.NewRouter(s,
		discordrouter.RouterConfig{
			DevGuildID:  cfg.DiscordGuild,
			OwnerIDs:    cfg.OwnerIDs,
			CommandRate: cfg.CommandRate,
		},
		reg, set, voice, node,
		discordrouter.WithLogger(lg.Named("discord")),
		discordrouter.WithRecorder(m),
	)
	r.Handlers()

	if err := s.Open(); err != nil {
		return err
	}
	defer s.Close()
	lg.Info("✅ conectado", zap.String("user", s.State.User.Username), zap.String("id", s.State.User.ID))

	if err := r.Register(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return node.Run(gctx, s.State.User.ID) })
	g.Go(func() error {
		return httpstatus.New(reg, set.Cache(), node, m.Handler(), lg.Named("http")).Start(gctx, cfg.HTTPAddr)
	})

	<-gctx.Done()
	lg.Info("apagando")

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := reg.CloseAll(closeCtx); err != nil {
		lg.Warn("cerrando sesiones", zap.Error(err))
	}
	stop()
	return g.Wait()
}
