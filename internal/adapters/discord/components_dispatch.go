package discord

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// los botones del now playing corren el mismo comando que el slash
var buttonCommands = map[string]string{
	btnPause:  "pause",
	btnResume: "resume",
	btnSkip:   "skip",
	btnStop:   "stop",
}

func (r *Router) handleMessageComponent(ic *discordgo.InteractionCreate) {
	if ic.GuildID == "" || ic.Member == nil || ic.Member.User == nil {
		return
	}
	data := ic.MessageComponentData()
	name, ok := buttonCommands[data.CustomID]
	if !ok {
		r.log.Debug("botón desconocido", zap.String("custom_id", data.CustomID))
		return
	}
	cmd := r.commands[name]

	c := &Ctx{
		Event:     ic,
		Session:   r.s,
		Source:    SourceButton,
		GuildID:   ic.GuildID,
		ChannelID: ic.ChannelID,
		Member:    ic.Member,
		UserID:    ic.Member.User.ID,
		Args:      map[string]string{},
		router:    r,
		ephemeral: true,
	}
	c.Log = r.log.With(zap.String("cmd", cmd.Name), zap.String("user", c.UserID), zap.String("guild", c.GuildID))

	_ = r.deferReply(ic, true)
	r.run(cmd, c)
}
