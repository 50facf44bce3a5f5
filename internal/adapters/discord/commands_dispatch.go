// aqui solo se arma el Ctx (slash, prefijo o botón), se pasan los filtros
// comunes y se despacha al handler; la lógica vive en los servicios
package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

const commandTimeout = 12 * time.Second

// errores propios del adapter; errText elige el texto
var (
	errIgnored         = errors.New("ignored")
	errRateLimited     = errors.New("rate limited")
	errForbidden       = errors.New("forbidden")
	errNotPrivileged   = errors.New("not privileged")
	errCommandDisabled = errors.New("command disabled")
	errChannelDisabled = errors.New("channel disabled")
)

// usageError es un argumento mal pasado; el mensaje va tal cual al usuario.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usage(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func (r *Router) handleSlashCommand(ic *discordgo.InteractionCreate) {
	if ic.GuildID == "" || ic.Member == nil || ic.Member.User == nil {
		return
	}
	data := ic.ApplicationCommandData()
	cmd, ok := r.commands[data.Name]
	if !ok {
		return
	}
	c := &Ctx{
		Event:     ic,
		Session:   r.s,
		Source:    SourceSlash,
		GuildID:   ic.GuildID,
		ChannelID: ic.ChannelID,
		Member:    ic.Member,
		UserID:    ic.Member.User.ID,
		router:    r,
		ephemeral: cmd.Ephemeral,
	}
	c.Sub, c.Args = interactionArgs(data.Options)
	c.Log = r.log.With(zap.String("cmd", cmd.Name), zap.String("sub", c.Sub), zap.String("user", c.UserID), zap.String("guild", c.GuildID))

	_ = r.deferReply(ic, cmd.Ephemeral)
	r.run(cmd, c)
}

// handlePrefix corre un comando de texto. Devuelve false si el mensaje no era uno.
func (r *Router) handlePrefix(m *discordgo.MessageCreate) bool {
	rest, ok := matchPrefix(m.Content, r.settings.Prefixes(m.GuildID), r.botID())
	if !ok || rest == "" {
		return false
	}
	name, raw, _ := strings.Cut(rest, " ")
	cmd, ok := r.commands[strings.ToLower(name)]
	if !ok {
		return false
	}
	c := &Ctx{
		Message:   m.Message,
		Session:   r.s,
		Source:    SourcePrefix,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Member:    m.Member,
		UserID:    m.Author.ID,
		router:    r,
	}
	c.Log = r.log.With(zap.String("cmd", cmd.Name), zap.String("user", c.UserID), zap.String("guild", c.GuildID))

	sub, args, err := parsePrefixArgs(cmd, raw)
	if err != nil {
		r.rec.Command(cmd.Name, string(c.Source), err)
		c.Reply(errText(err))
		return true
	}
	c.Sub, c.Args = sub, args
	r.run(cmd, c)
	return true
}

// run pasa los filtros comunes y corre el handler con timeout y recover.
func (r *Router) run(cmd *Command, c *Ctx) {
	defer func() {
		if rec := recover(); rec != nil {
			c.Log.Error("panic en comando", zap.Any("panic", rec), zap.Stack("stack"))
			c.ReplyPrivate("⚠️ Ocurrió un error inesperado.")
		}
	}()
	defer step(c.Log, "command."+cmd.Name)()

	err := r.gate(cmd, c)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		err = cmd.Handler(ctx, c)
	}
	r.rec.Command(cmd.Name, string(c.Source), err)
	if err == nil {
		return
	}
	if errors.Is(err, errIgnored) && c.Source == SourcePrefix {
		return
	}
	if !isUserError(err) {
		c.Log.Warn("comando falló", zap.Error(err))
	}
	c.ReplyPrivate(errText(err))
}

// gate: blacklist, rate limit, permisos y comandos/canales apagados (los admins los saltean).
func (r *Router) gate(cmd *Command, c *Ctx) error {
	if r.settings.IsBlacklisted(c.UserID) && !r.isOwner(c.UserID) {
		return errIgnored
	}
	if !r.limiter.Allow(c.UserID) {
		return errRateLimited
	}
	if !r.allowed(cmd, c) {
		return errForbidden
	}
	if cmd.NoDisable || r.isAdmin(c) {
		return nil
	}
	g, ok := r.settings.Cache().Guild(c.GuildID)
	if !ok {
		return nil
	}
	if g.ChannelDisabled(c.ChannelID) {
		return errChannelDisabled
	}
	if g.CommandDisabled(cmd.Name) {
		return errCommandDisabled
	}
	return nil
}

// parsePrefixArgs reparte el resto de la línea entre subcomando y params.
// Los --nombre[=valor] se toman aparte; el resto es posicional en orden.
func parsePrefixArgs(cmd *Command, raw string) (string, map[string]string, error) {
	tokens := strings.Fields(raw)
	args := map[string]string{}

	params := cmd.Params
	sub := ""
	if len(cmd.Subs) > 0 {
		names := make([]string, 0, len(cmd.Subs))
		for _, s := range cmd.Subs {
			names = append(names, s.Name)
		}
		if len(tokens) == 0 {
			return "", nil, usage("Uso: `%s <%s>`", cmd.Name, strings.Join(names, "|"))
		}
		s, ok := cmd.sub(strings.ToLower(tokens[0]))
		if !ok {
			return "", nil, usage("Subcomando desconocido `%s`. Opciones: %s", tokens[0], strings.Join(names, ", "))
		}
		sub, params, tokens = s.Name, s.Params, tokens[1:]
	}

	var positional []string
	for _, tok := range tokens {
		if name, val, ok := flagToken(tok, params); ok {
			args[name] = val
			continue
		}
		positional = append(positional, tok)
	}

	for _, p := range params {
		if _, set := args[p.Name]; set {
			continue
		}
		if len(positional) == 0 {
			break
		}
		if p.Rest {
			args[p.Name] = strings.Join(positional, " ")
			positional = nil
			break
		}
		args[p.Name], positional = positional[0], positional[1:]
	}

	for _, p := range params {
		v, set := args[p.Name]
		if !set {
			if p.Required {
				return "", nil, usage("Falta `%s` (%s).", p.Name, p.Description)
			}
			continue
		}
		if err := checkParam(p, v); err != nil {
			return "", nil, err
		}
		if len(p.Choices) > 0 {
			args[p.Name] = strings.ToLower(v)
		}
	}
	return sub, args, nil
}

// flagToken reconoce --nombre y --nombre=valor de un param conocido.
func flagToken(tok string, params []Param) (string, string, bool) {
	if !strings.HasPrefix(tok, "--") {
		return "", "", false
	}
	name, val, hasVal := strings.Cut(strings.TrimPrefix(tok, "--"), "=")
	for _, p := range params {
		if !strings.EqualFold(p.Name, name) {
			continue
		}
		if !hasVal {
			if p.Type != optBool {
				return "", "", false
			}
			val = "true"
		}
		return p.Name, val, true
	}
	return "", "", false
}

func checkParam(p Param, v string) error {
	switch p.Type {
	case optInt:
		if _, err := strconv.Atoi(v); err != nil {
			return usage("`%s` tiene que ser un número entero.", p.Name)
		}
	case optNumber:
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return usage("`%s` tiene que ser un número.", p.Name)
		}
	case optBool:
		if _, ok := parseBoolWord(v); !ok {
			return usage("`%s` tiene que ser on/off.", p.Name)
		}
	case optUser, optChannel, optRole:
		if len(parseIDs(v)) == 0 {
			return usage("`%s` tiene que ser una mención o un id.", p.Name)
		}
	}
	if len(p.Choices) > 0 {
		for _, c := range p.Choices {
			if strings.EqualFold(c, v) {
				return nil
			}
		}
		return usage("`%s` tiene que ser uno de: %s", p.Name, strings.Join(p.Choices, ", "))
	}
	return nil
}

// isUserError: errores esperables que no vale la pena loguear como warning.
func isUserError(err error) bool {
	var ue *usageError
	if errors.As(err, &ue) {
		return true
	}
	for _, e := range []error{
		errIgnored, errRateLimited, errForbidden, errNotPrivileged, errCommandDisabled, errChannelDisabled,
		domain.ErrNotInVoice, domain.ErrBotNotInVoice, domain.ErrIncorrectChannel, domain.ErrNoSession,
		domain.ErrEmptyQueue, domain.ErrDuplicateTrack, domain.ErrNoResults, domain.ErrNotPlaying,
		domain.ErrAlreadyPaused, domain.ErrNotPaused, domain.ErrInvalidVolume, domain.ErrNotSeekable,
		domain.ErrIndexOutOfRange, domain.ErrInvalidMember, domain.ErrSessionClosed, domain.ErrInvalidValue,
		domain.ErrLimitReached, domain.ErrNotFound,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// errText es el único lugar que decide qué ve el usuario ante un error.
func errText(err error) string {
	var ue *usageError
	if errors.As(err, &ue) {
		return "❓ " + ue.msg
	}
	switch {
	case errors.Is(err, errIgnored):
		return "🚫 No podés usar el bot."
	case errors.Is(err, errRateLimited):
		return "⏳ Esperá un segundo…"
	case errors.Is(err, errForbidden):
		return "🔒 No tienes permisos para esta acción."
	case errors.Is(err, errNotPrivileged):
		return "🎧 Sólo el DJ o un moderador puede hacer eso."
	case errors.Is(err, errCommandDisabled):
		return "🔕 Ese comando está apagado en este servidor."
	case errors.Is(err, errChannelDisabled):
		return "🔕 Los comandos están apagados en este canal."
	case errors.Is(err, domain.ErrNotInVoice):
		return "🎧 Tenés que estar en un canal de voz."
	case errors.Is(err, domain.ErrBotNotInVoice), errors.Is(err, domain.ErrNoSession), errors.Is(err, domain.ErrSessionClosed):
		return "🔇 No estoy conectado. Usá `play` o `connect`."
	case errors.Is(err, domain.ErrIncorrectChannel):
		return "📍 Usá el canal de voz y el de texto donde está el bot."
	case errors.Is(err, domain.ErrEmptyQueue):
		return "📭 La cola está vacía."
	case errors.Is(err, domain.ErrDuplicateTrack):
		return "🔁 Eso ya está en la cola."
	case errors.Is(err, domain.ErrNoResults):
		return "🔎 No encontré nada."
	case errors.Is(err, domain.ErrNotPlaying):
		return "⏹️ No está sonando nada."
	case errors.Is(err, domain.ErrAlreadyPaused):
		return "⏸️ Ya está pausado."
	case errors.Is(err, domain.ErrNotPaused):
		return "▶️ No está pausado."
	case errors.Is(err, domain.ErrInvalidVolume):
		return "🔊 El volumen va de 0 a 200."
	case errors.Is(err, domain.ErrNotSeekable):
		return "⏩ Este track no se puede adelantar."
	case errors.Is(err, domain.ErrIndexOutOfRange):
		return "🔢 Esa posición no existe en la cola."
	case errors.Is(err, domain.ErrInvalidMember):
		return "👤 Ese miembro no sirve para eso."
	case errors.Is(err, domain.ErrLimitReached):
		return "📦 Llegaste al límite."
	case errors.Is(err, domain.ErrInvalidValue):
		return "❓ Valor inválido: " + err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return "🔎 No existe."
	}
	return "⚠️ Algo salió mal, probá de nuevo."
}
