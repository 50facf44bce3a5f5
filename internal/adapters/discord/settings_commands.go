package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

func (r *Router) cmdPrefix(ctx context.Context, c *Ctx) error {
	var (
		g   domain.GuildConfig
		err error
	)
	switch c.Sub {
	case "add":
		g, err = r.settings.AddToGuildSet(ctx, c.GuildID, domain.FieldPrefixes, c.Str("prefix"))
	case "remove":
		g, err = r.settings.RemoveFromGuildSet(ctx, c.GuildID, domain.FieldPrefixes, c.Str("prefix"))
	default:
		g, err = r.settings.EnsureGuild(ctx, c.GuildID)
	}
	if err != nil {
		return err
	}
	c.Reply("Prefijos: " + codeList(r.settings.Prefixes(g.GuildID)))
	return nil
}

func codeList(items []string) string {
	if len(items) == 0 {
		return "—"
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = "`" + it + "`"
	}
	return strings.Join(out, " ")
}

func (r *Router) cmdLogging(ctx context.Context, c *Ctx) error {
	var p domain.LoggingPatch
	switch c.Sub {
	case "channel":
		id, ok := c.ID("channel")
		if !ok {
			return usage("Pasame un canal.")
		}
		p.ChannelID = &id
	case "toggle":
		v, _ := c.Bool("enabled")
		p.Enabled = &v
	case "events":
		v, _ := c.Bool("enabled")
		switch c.Str("kind") {
		case "member":
			p.MemberEvents = &v
		case "message":
			p.MessageEvents = &v
		case "mod":
			p.ModEvents = &v
		default:
			return usage("`kind` tiene que ser member, message o mod.")
		}
	case "reset":
		if err := r.settings.DeleteLogging(ctx, c.GuildID); err != nil {
			return err
		}
		c.Reply("🗑️ Configuración borrada.")
		return nil
	case "show":
		l, _ := r.settings.Cache().Logging(c.GuildID)
		c.Reply(loggingText(l))
		return nil
	}
	l, err := r.settings.UpdateLogging(ctx, c.GuildID, p)
	if err != nil {
		return err
	}
	c.Reply("✅ Guardado.\n" + loggingText(l))
	return nil
}

func loggingText(l domain.LoggingConfig) string {
	return fmt.Sprintf("**Logs** %s · canal %s\nmiembros %s · mensajes %s · moderación %s",
		onOff(l.Enabled), mentionOrDash(l.ChannelID, channelMention),
		onOff(l.MemberEvents), onOff(l.MessageEvents), onOff(l.ModEvents))
}

func (r *Router) cmdJoinLeave(ctx context.Context, c *Ctx) error {
	var p domain.JoinLeavePatch
	switch c.Sub {
	case "channel":
		id, ok := c.ID("channel")
		if !ok {
			return usage("Pasame un canal.")
		}
		p.ChannelID = &id
	case "join":
		v, _ := c.Bool("enabled")
		p.JoinEnabled = &v
	case "leave":
		v, _ := c.Bool("enabled")
		p.LeaveEnabled = &v
	case "joinmessage":
		p.JoinMessage = strPtr(c.Str("message"))
	case "leavemessage":
		p.LeaveMessage = strPtr(c.Str("message"))
	case "reset":
		if err := r.settings.DeleteJoinLeave(ctx, c.GuildID); err != nil {
			return err
		}
		c.Reply("🗑️ Configuración borrada.")
		return nil
	case "show":
		j, _ := r.settings.Cache().JoinLeave(c.GuildID)
		c.Reply(joinLeaveText(j))
		return nil
	}
	j, err := r.settings.UpdateJoinLeave(ctx, c.GuildID, p)
	if err != nil {
		return err
	}
	c.Reply("✅ Guardado.\n" + joinLeaveText(j))
	return nil
}

func joinLeaveText(j domain.JoinLeaveConfig) string {
	return fmt.Sprintf("**Bienvenidas** %s · **Despedidas** %s · canal %s\nentrada: %s\nsalida: %s",
		onOff(j.JoinEnabled), onOff(j.LeaveEnabled), mentionOrDash(j.ChannelID, channelMention),
		orDash(deref(j.JoinMessage)), orDash(deref(j.LeaveMessage)))
}

func (r *Router) cmdVerification(ctx context.Context, c *Ctx) error {
	var p domain.VerificationPatch
	switch c.Sub {
	case "role":
		id, ok := c.ID("role")
		if !ok {
			return usage("Pasame un rol.")
		}
		p.RoleID = &id
	case "channel":
		id, ok := c.ID("channel")
		if !ok {
			return usage("Pasame un canal.")
		}
		p.ChannelID = &id
	case "toggle":
		v, _ := c.Bool("enabled")
		p.Enabled = &v
	case "reset":
		if err := r.settings.DeleteVerification(ctx, c.GuildID); err != nil {
			return err
		}
		c.Reply("🗑️ Configuración borrada.")
		return nil
	case "show":
		v, _ := r.settings.Cache().Verification(c.GuildID)
		c.Reply(verificationText(v))
		return nil
	}
	v, err := r.settings.UpdateVerification(ctx, c.GuildID, p)
	if err != nil {
		return err
	}
	c.Reply("✅ Guardado.\n" + verificationText(v))
	return nil
}

func verificationText(v domain.VerificationConfig) string {
	return fmt.Sprintf("**Verificación** %s · rol %s · canal %s",
		onOff(v.Enabled), mentionOrDash(v.RoleID, roleMention), mentionOrDash(v.ChannelID, channelMention))
}

func mentionOrDash(id *string, mention func(string) string) string {
	if id == nil || *id == "" {
		return "—"
	}
	return mention(*id)
}

// cmdVerify da el rol configurado. Sin config completa no hace nada.
func (r *Router) cmdVerify(ctx context.Context, c *Ctx) error {
	v, ok := r.settings.Cache().Verification(c.GuildID)
	if !ok || !v.Ready() {
		return usage("La verificación no está configurada en este servidor.")
	}
	if v.ChannelID != nil && *v.ChannelID != "" && *v.ChannelID != c.ChannelID {
		return usage("Verificate en %s.", channelMention(*v.ChannelID))
	}
	if c.Member != nil && slices.Contains(c.Member.Roles, *v.RoleID) {
		c.Reply("Ya estás verificado.")
		return nil
	}
	if err := r.s.GuildMemberRoleAdd(c.GuildID, c.UserID, *v.RoleID); err != nil {
		return fmt.Errorf("verify role: %w", err)
	}
	c.Reply("✅ Verificado, bienvenido.")
	return nil
}

// cmdToggleTarget es disable (true) y enable (false) de comandos o canales.
func (r *Router) cmdToggleTarget(disable bool) CommandHandler {
	return func(ctx context.Context, c *Ctx) error {
		target := strings.ToLower(c.Str("target"))
		field, value, label, err := r.toggleTarget(target)
		if err != nil {
			return err
		}
		if disable {
			_, err = r.settings.AddToGuildSet(ctx, c.GuildID, field, value)
		} else {
			_, err = r.settings.RemoveFromGuildSet(ctx, c.GuildID, field, value)
		}
		if err != nil {
			return err
		}
		state := "🔔 prendido"
		if disable {
			state = "🔕 apagado"
		}
		c.Reply(label + " " + state + ".")
		return nil
	}
}

// toggleTarget decide si target es un canal o un comando.
func (r *Router) toggleTarget(target string) (domain.GuildSetField, string, string, error) {
	if ids := parseIDs(target); len(ids) == 1 {
		return domain.FieldDisabledChannels, ids[0], channelMention(ids[0]), nil
	}
	cmd, ok := r.commands[target]
	if !ok {
		return "", "", "", usage("No conozco el comando `%s`.", target)
	}
	if cmd.NoDisable {
		return "", "", "", usage("`%s` no se puede apagar.", cmd.Name)
	}
	return domain.FieldDisabledCommands, cmd.Name, "`" + cmd.Name + "`", nil
}

func (r *Router) cmdAutoUnarchive(ctx context.Context, c *Ctx) error {
	var (
		g   domain.GuildConfig
		err error
	)
	switch c.Sub {
	case "add", "remove":
		id, ok := c.ID("thread")
		if !ok {
			return usage("Pasame un hilo.")
		}
		if c.Sub == "add" {
			g, err = r.settings.AddToGuildSet(ctx, c.GuildID, domain.FieldAutoUnarchive, id)
		} else {
			g, err = r.settings.RemoveFromGuildSet(ctx, c.GuildID, domain.FieldAutoUnarchive, id)
		}
	default:
		g, err = r.settings.EnsureGuild(ctx, c.GuildID)
	}
	if err != nil {
		return err
	}
	list := make([]string, len(g.AutoUnarchive))
	for i, id := range g.AutoUnarchive {
		list[i] = channelMention(id)
	}
	c.Reply("Hilos que se desarchivan solos: " + orDash(strings.Join(list, " ")))
	return nil
}

func (r *Router) cmdHighlight(ctx context.Context, c *Ctx) error {
	var (
		h   domain.HighlightConfig
		err error
	)
	switch c.Sub {
	case "add":
		h, err = r.settings.AddHighlight(ctx, c.UserID, domain.FieldTriggers, c.Str("word"))
	case "remove":
		h, err = r.settings.RemoveHighlight(ctx, c.UserID, domain.FieldTriggers, c.Str("word"))
	case "block", "unblock":
		id, ok := c.ID("member")
		if !ok {
			return usage("Mencioná a alguien.")
		}
		if c.Sub == "block" {
			h, err = r.settings.AddHighlight(ctx, c.UserID, domain.FieldBlocked, id)
		} else {
			h, err = r.settings.RemoveHighlight(ctx, c.UserID, domain.FieldBlocked, id)
		}
	case "clear":
		if err := r.settings.DeleteHighlights(ctx, c.UserID); err != nil {
			return err
		}
		c.Reply("🗑️ Highlights borrados.")
		return nil
	default:
		h, _ = r.settings.Cache().Highlight(c.UserID)
	}
	if errors.Is(err, domain.ErrNotFound) {
		c.Reply("No tenés highlights todavía.")
		return nil
	}
	if err != nil {
		return err
	}
	c.Reply(highlightText(h))
	return nil
}

func highlightText(h domain.HighlightConfig) string {
	blocked := make([]string, len(h.Blocked))
	for i, id := range h.Blocked {
		blocked[i] = userMention(id)
	}
	return fmt.Sprintf("**Palabras:** %s\n**Bloqueados:** %s", codeList(h.Triggers), orDash(strings.Join(blocked, " ")))
}

func (r *Router) cmdTimezone(ctx context.Context, c *Ctx) error {
	zone := c.Str("zone")
	if zone == "" {
		u, err := r.settings.EnsureUser(ctx, c.UserID)
		if err != nil {
			return err
		}
		c.Reply("🕒 Tu zona: " + orDash(deref(u.Timezone)))
		return nil
	}
	u, err := r.settings.UpdateUser(ctx, c.UserID, domain.UserConfigPatch{Timezone: &zone})
	if err != nil {
		return err
	}
	c.Reply("🕒 Zona guardada: " + deref(u.Timezone))
	return nil
}

// cmdResetMe borra todo lo que el bot guarda del usuario.
func (r *Router) cmdResetMe(ctx context.Context, c *Ctx) error {
	if err := r.settings.DeleteHighlights(ctx, c.UserID); err != nil {
		return err
	}
	if err := r.settings.DeleteUser(ctx, c.UserID); err != nil {
		return err
	}
	c.Reply("🗑️ Listo, no guardo nada tuyo.")
	return nil
}

func (r *Router) cmdColor(ctx context.Context, c *Ctx) error {
	color, err := parseColor(c.Str("hex"))
	if err != nil {
		return err
	}
	if _, err := r.settings.UpdateUser(ctx, c.UserID, domain.UserConfigPatch{EmbedColor: &color}); err != nil {
		return err
	}
	if color < 0 {
		c.Reply("🎨 Color por defecto.")
		return nil
	}
	c.Reply(fmt.Sprintf("🎨 Color guardado: #%06x", color))
	return nil
}

// parseColor: "#rrggbb", "rrggbb" o "reset" (-1 limpia).
func parseColor(raw string) (int, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "reset" || raw == "none" {
		return -1, nil
	}
	raw = strings.TrimPrefix(raw, "#")
	n, err := strconv.ParseUint(raw, 16, 32)
	if err != nil || len(raw) != 6 {
		return 0, usage("Color inválido, usá #rrggbb.")
	}
	return int(n), nil
}

func (r *Router) cmdBlacklist(ctx context.Context, c *Ctx) error {
	id, ok := c.ID("user")
	if !ok {
		return usage("Mencioná al usuario.")
	}
	if c.Sub == "remove" {
		if err := r.settings.Unblacklist(ctx, id); err != nil {
			return err
		}
		c.Reply("✅ " + userMention(id) + " desbloqueado.")
		return nil
	}
	if r.isOwner(id) {
		return usage("No se puede bloquear a un owner.")
	}
	ttl, err := parseTTL(c.Str("duration"))
	if err != nil {
		return err
	}
	b, err := r.settings.Blacklist(ctx, id, c.Str("reason"), ttl)
	if err != nil {
		return err
	}
	until := "para siempre"
	if b.ExpiresAt != nil {
		until = fmt.Sprintf("hasta <t:%d:f>", b.ExpiresAt.Unix())
	}
	c.Reply("🚫 " + userMention(id) + " bloqueado " + until + ".")
	return nil
}
