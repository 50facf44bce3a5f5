package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL  string
	DiscordToken string
	DiscordGuild string   // opcional: registra los slash sólo en esta guild (dev)
	Prefixes     []string // prefijos default si la guild no tiene propios
	OwnerIDs     []string
	HTTPAddr     string // status server, default :8080

	LogLevel  string
	LogFormat string

	LavalinkHost     string
	LavalinkPort     int
	LavalinkPassword string
	LavalinkSecure   bool

	EmptyChannelGrace time.Duration // cuánto esperar con el bot solo antes de desconectar
	CommandRate       time.Duration // un comando cada X por usuario
}

// Load lee .env (si existe), config.yaml opcional y el entorno. El entorno gana.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return Config{}, fmt.Errorf("config.yaml: %w", err)
		}
	}
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("DEFAULT_PREFIXES", "a!")
	v.SetDefault("LAVALINK_PORT", 2333)
	v.SetDefault("LAVALINK_SECURE", false)
	v.SetDefault("EMPTY_CHANNEL_GRACE", "30s")
	v.SetDefault("COMMAND_RATE", "2s")

	cfg := Config{
		DatabaseURL:       v.GetString("DATABASE_URL"),
		DiscordToken:      v.GetString("DISCORD_BOT_TOKEN"),
		DiscordGuild:      v.GetString("DISCORD_GUILD_ID"),
		Prefixes:          splitList(v.GetString("DEFAULT_PREFIXES")),
		OwnerIDs:          splitList(v.GetString("OWNER_IDS")),
		HTTPAddr:          v.GetString("HTTP_ADDR"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogFormat:         v.GetString("LOG_FORMAT"),
		LavalinkHost:      v.GetString("LAVALINK_HOST"),
		LavalinkPort:      v.GetInt("LAVALINK_PORT"),
		LavalinkPassword:  v.GetString("LAVALINK_PASSWORD"),
		LavalinkSecure:    v.GetBool("LAVALINK_SECURE"),
		EmptyChannelGrace: v.GetDuration("EMPTY_CHANNEL_GRACE"),
		CommandRate:       v.GetDuration("COMMAND_RATE"),
	}
	return cfg, cfg.Validate()
}

// Validate junta todos los faltantes en un solo error.
func (c Config) Validate() error {
	var errs []error
	req := map[string]string{
		"DATABASE_URL":      c.DatabaseURL,
		"DISCORD_BOT_TOKEN": c.DiscordToken,
		"LAVALINK_HOST":     c.LavalinkHost,
		"LAVALINK_PASSWORD": c.LavalinkPassword,
	}
	for _, k := range []string{"DATABASE_URL", "DISCORD_BOT_TOKEN", "LAVALINK_HOST", "LAVALINK_PASSWORD"} {
		if req[k] == "" {
			errs = append(errs, fmt.Errorf("faltante env %s", k))
		}
	}
	if c.LavalinkPort <= 0 || c.LavalinkPort > 65535 {
		errs = append(errs, fmt.Errorf("LAVALINK_PORT inválido: %d", c.LavalinkPort))
	}
	if c.EmptyChannelGrace <= 0 {
		errs = append(errs, errors.New("EMPTY_CHANNEL_GRACE debe ser > 0"))
	}
	if len(c.Prefixes) == 0 {
		errs = append(errs, errors.New("DEFAULT_PREFIXES vacío"))
	}
	return errors.Join(errs...)
}

// LavalinkBaseURL: http(s)://host:port
func (c Config) LavalinkBaseURL() string {
	scheme := "http"
	if c.LavalinkSecure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.LavalinkHost, c.LavalinkPort)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
