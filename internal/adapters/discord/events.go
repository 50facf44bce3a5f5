package discord

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

const eventTimeout = 8 * time.Second

func eventCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), eventTimeout)
}

// ---- guilds ----

func (r *Router) onGuildCreate(s *discordgo.Session, gc *discordgo.GuildCreate) {
	defer r.recovered("guild_create")
	if gc.Guild == nil || gc.Unavailable {
		return
	}
	ctx, cancel := eventCtx()
	defer cancel()
	if _, err := r.settings.EnsureGuild(ctx, gc.ID); err != nil {
		r.log.Warn("ensure guild", zap.String("guild", gc.ID), zap.Error(err))
	}
}

// onGuildDelete: unavailable es una caída de Discord, no que nos echaron.
func (r *Router) onGuildDelete(s *discordgo.Session, gd *discordgo.GuildDelete) {
	defer r.recovered("guild_delete")
	if gd.Guild == nil || gd.Unavailable {
		return
	}
	ctx, cancel := eventCtx()
	defer cancel()
	if _, ok := r.music.Get(gd.ID); ok {
		if err := r.music.Disconnect(ctx, gd.ID); err != nil {
			r.log.Warn("disconnect guild borrada", zap.String("guild", gd.ID), zap.Error(err))
		}
	}
	if err := r.settings.RemoveGuild(ctx, gd.ID); err != nil {
		r.log.Warn("remove guild", zap.String("guild", gd.ID), zap.Error(err))
	}
}

// ---- voz ----

func (r *Router) onVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	defer r.recovered("voice_state_update")
	if vs.VoiceState == nil || vs.GuildID == "" {
		return
	}
	ctx, cancel := eventCtx()
	defer cancel()

	if vs.UserID == r.botID() {
		r.botVoiceState(ctx, vs)
		return
	}

	from := ""
	if vs.BeforeUpdate != nil {
		from = vs.BeforeUpdate.ChannelID
	}
	if from == vs.ChannelID {
		return // mute/deaf
	}
	m := domain.Member{ID: vs.UserID}
	if vs.Member != nil && vs.Member.User != nil {
		m.Bot = vs.Member.User.Bot
	}
	if vs.ChannelID != "" {
		m = r.voice.Member(vs.GuildID, vs.ChannelID, vs.UserID)
	}
	r.music.VoiceMoved(vs.GuildID, m, from, vs.ChannelID)
}

// botVoiceState reenvía el handshake al nodo. Si el bot quedó fuera del canal
// de la sesión (kick, canal borrado, lo movieron) la sesión se cierra.
func (r *Router) botVoiceState(ctx context.Context, vs *discordgo.VoiceStateUpdate) {
	sessionID := vs.SessionID
	if vs.ChannelID == "" {
		sessionID = ""
	}
	if err := r.node.VoiceStateUpdate(ctx, vs.GuildID, sessionID); err != nil {
		r.log.Warn("voice state al nodo", zap.String("guild", vs.GuildID), zap.Error(err))
	}
	sess, ok := r.music.Get(vs.GuildID)
	if !ok || vs.ChannelID == sess.VoiceChannelID() {
		return
	}
	if err := r.music.VoiceLost(ctx, vs.GuildID); err != nil {
		r.log.Warn("voice lost", zap.String("guild", vs.GuildID), zap.Error(err))
	}
}

func (r *Router) onVoiceServerUpdate(s *discordgo.Session, vsu *discordgo.VoiceServerUpdate) {
	defer r.recovered("voice_server_update")
	ctx, cancel := eventCtx()
	defer cancel()
	if err := r.node.VoiceServerUpdate(ctx, vsu.GuildID, vsu.Token, vsu.Endpoint); err != nil {
		r.log.Warn("voice server al nodo", zap.String("guild", vsu.GuildID), zap.Error(err))
	}
}

// ---- miembros y logs ----

func (r *Router) guildName(guildID string) string {
	if g, err := r.s.State.Guild(guildID); err == nil && g != nil {
		return g.Name
	}
	return ""
}

func (r *Router) onGuildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	defer r.recovered("guild_member_add")
	if m.Member == nil || m.User == nil {
		return
	}
	if j, ok := r.settings.Cache().JoinLeave(m.GuildID); ok {
		if ch, tmpl, ok := j.Join(); ok {
			r.send(ch, renderTemplate(tmpl, m.User, r.guildName(m.GuildID)))
		}
	}
	r.logEvent(m.GuildID, func(l domain.LoggingConfig) bool { return l.MemberEvents },
		"📥 Entró "+m.User.Mention()+" ("+m.User.Username+")")
}

func (r *Router) onGuildMemberRemove(s *discordgo.Session, m *discordgo.GuildMemberRemove) {
	defer r.recovered("guild_member_remove")
	if m.Member == nil || m.User == nil {
		return
	}
	if j, ok := r.settings.Cache().JoinLeave(m.GuildID); ok {
		if ch, tmpl, ok := j.Leave(); ok {
			r.send(ch, renderTemplate(tmpl, m.User, r.guildName(m.GuildID)))
		}
	}
	r.logEvent(m.GuildID, func(l domain.LoggingConfig) bool { return l.MemberEvents },
		"📤 Salió "+m.User.Mention()+" ("+m.User.Username+")")
}

func (r *Router) onGuildBanAdd(s *discordgo.Session, b *discordgo.GuildBanAdd) {
	defer r.recovered("guild_ban_add")
	if b.User == nil {
		return
	}
	r.logEvent(b.GuildID, func(l domain.LoggingConfig) bool { return l.ModEvents },
		"🔨 Baneado "+b.User.Mention()+" ("+b.User.Username+")")
}

// onMessageDelete sólo tiene el contenido si el mensaje estaba en el state.
func (r *Router) onMessageDelete(s *discordgo.Session, m *discordgo.MessageDelete) {
	defer r.recovered("message_delete")
	if m.Message == nil || m.GuildID == "" {
		return
	}
	text := "🗑️ Mensaje borrado en " + channelMention(m.ChannelID)
	if b := m.BeforeDelete; b != nil && b.Author != nil {
		if b.Author.Bot {
			return
		}
		text += fmt.Sprintf(" de %s:\n>>> %s", b.Author.Mention(), truncate(b.Content, 1500))
	}
	r.logEvent(m.GuildID, func(l domain.LoggingConfig) bool { return l.MessageEvents }, text)
}

// logEvent manda text al canal de logs si logging está activo y want lo pide.
func (r *Router) logEvent(guildID string, want func(domain.LoggingConfig) bool, text string) {
	l, ok := r.settings.Cache().Logging(guildID)
	if !ok || !want(l) {
		return
	}
	if ch, ok := l.Channel(); ok {
		r.send(ch, text)
	}
}

// ---- hilos ----

func (r *Router) onThreadUpdate(s *discordgo.Session, t *discordgo.ThreadUpdate) {
	defer r.recovered("thread_update")
	if t.Channel == nil || t.ThreadMetadata == nil || !t.ThreadMetadata.Archived {
		return
	}
	g, ok := r.settings.Cache().Guild(t.GuildID)
	if !ok || !(slices.Contains(g.AutoUnarchive, t.ID) || slices.Contains(g.AutoUnarchive, t.ParentID)) {
		return
	}
	if _, err := r.s.ChannelEdit(t.ID, &discordgo.ChannelEdit{Archived: boolPtr(false)}); err != nil {
		r.log.Warn("unarchive", zap.String("thread", t.ID), zap.Error(err))
		return
	}
	r.log.Info("hilo desarchivado", zap.String("guild", t.GuildID), zap.String("thread", t.ID))
}

// ---- mensajes ----

func (r *Router) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	defer r.recovered("message_create")
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if r.settings.IsBlacklisted(m.Author.ID) {
		return
	}
	if r.handlePrefix(m) {
		return
	}
	r.deliverHighlights(m)
}

// deliverHighlights avisa por DM a quien tenga una palabra del mensaje, si
// puede ver el canal. La primera vez se explica cómo cortarlo.
func (r *Router) deliverHighlights(m *discordgo.MessageCreate) {
	if m.Content == "" {
		return
	}
	for _, uid := range r.settings.MatchHighlights(m.Content, m.Author.ID) {
		if uid == r.botID() || !r.hlLimiter.Allow(uid) {
			continue
		}
		p, err := r.s.State.UserChannelPermissions(uid, m.ChannelID)
		if err != nil || p&discordgo.PermissionViewChannel == 0 {
			continue
		}
		go r.sendHighlight(uid, m)
	}
}

func (r *Router) sendHighlight(uid string, m *discordgo.MessageCreate) {
	defer r.recovered("highlight")
	dm, err := r.s.UserChannelCreate(uid)
	if err != nil {
		r.log.Debug("dm highlight", zap.String("user", uid), zap.Error(err))
		return
	}
	link := fmt.Sprintf("https://discord.com/channels/%s/%s/%s", m.GuildID, m.ChannelID, m.ID)
	e := &discordgo.MessageEmbed{
		Title:       "🔔 Te mencionaron una palabra",
		Description: truncate(m.Content, 2000),
		Color:       r.colorFor(uid),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Canal", Value: channelMention(m.ChannelID), Inline: true},
			{Name: "Autor", Value: m.Author.Mention(), Inline: true},
			{Name: "Mensaje", Value: "[ir](" + link + ")", Inline: true},
		},
	}
	r.send(dm.ID, "", e)

	ctx, cancel := eventCtx()
	defer cancel()
	u, err := r.settings.EnsureUser(ctx, uid)
	if err != nil || u.DMed {
		return
	}
	r.send(dm.ID, "ℹ️ Te llegan estos avisos por tus highlights. Usá `highlight remove` o `highlight block` para cortarlos.")
	if _, err := r.settings.UpdateUser(ctx, uid, domain.UserConfigPatch{DMed: boolPtr(true)}); err != nil {
		r.log.Warn("marcar dmed", zap.String("user", uid), zap.Error(err))
	}
}
