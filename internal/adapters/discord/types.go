package discord

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Source dice de dónde vino el comando.
type Source string

const (
	SourceSlash  Source = "slash"
	SourcePrefix Source = "prefix"
	SourceButton Source = "button"
)

// Ctx es lo que recibe un handler, venga de un slash o de un mensaje con prefijo.
type Ctx struct {
	Log       *zap.Logger
	Session   *discordgo.Session
	Event     *discordgo.InteractionCreate // nil en prefijo
	Message   *discordgo.Message           // nil en slash
	Source    Source
	GuildID   string
	ChannelID string
	Member    *discordgo.Member
	UserID    string
	// Sub es el subcomando elegido (vacío si el comando no tiene)
	Sub string
	// Args por nombre de opción
	Args map[string]string

	router    *Router
	ephemeral bool
}

func (c *Ctx) Str(name string) string { return strings.TrimSpace(c.Args[name]) }

func (c *Ctx) Has(name string) bool {
	_, ok := c.Args[name]
	return ok
}

func (c *Ctx) Int(name string) (int, bool) {
	v, ok := c.Args[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	return n, err == nil
}

func (c *Ctx) Float(name string) (float64, bool) {
	v, ok := c.Args[name]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f, err == nil
}

// Bool acepta true/false y también on/off, si/no.
func (c *Ctx) Bool(name string) (bool, bool) {
	v, ok := c.Args[name]
	if !ok {
		return false, false
	}
	return parseBoolWord(v)
}

// ID lee una mención o un id pelado (usuario, rol o canal).
func (c *Ctx) ID(name string) (string, bool) {
	ids := parseIDs(c.Args[name])
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

// Reply contesta en el mismo medio en que llegó el comando.
func (c *Ctx) Reply(content string, embeds ...*discordgo.MessageEmbed) {
	c.router.reply(c, false, content, embeds...)
}

// ReplyPrivate es efímero en slash; en prefijo no hay forma y va al canal.
func (c *Ctx) ReplyPrivate(content string, embeds ...*discordgo.MessageEmbed) {
	c.router.reply(c, true, content, embeds...)
}

type CommandHandler func(ctx context.Context, c *Ctx) error

// Perm es el nivel mínimo para correr un comando.
type Perm int

const (
	PermEveryone Perm = iota
	PermAdmin         // Administrator / Manage Server / dueño
	PermOwner         // OWNER_IDS del bot
)

// Param es una opción de slash y, en orden, un argumento posicional del prefijo.
// En prefijo también se puede pasar como --nombre o --nombre=valor.
type Param struct {
	Name        string
	Description string
	Type        discordgo.ApplicationCommandOptionType
	Required    bool
	Choices     []string
	// Rest: en prefijo se come el resto de la línea
	Rest bool
}

type Sub struct {
	Name        string
	Description string
	Params      []Param
}

type Command struct {
	Name        string
	Description string
	Aliases     []string // sólo prefijo
	Params      []Param
	Subs        []Sub
	Perm        Perm
	// Ephemeral: en slash la respuesta es privada
	Ephemeral bool
	// NoDisable: no se puede apagar con disable (disable/enable, help)
	NoDisable bool
	Handler   CommandHandler
}

func (cmd *Command) sub(name string) (*Sub, bool) {
	for i := range cmd.Subs {
		if cmd.Subs[i].Name == name {
			return &cmd.Subs[i], true
		}
	}
	return nil, false
}
