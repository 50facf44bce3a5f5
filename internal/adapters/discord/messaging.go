package discord

import (
	"errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const maxContent = 2000

// sin pings accidentales desde el contenido que escriben los usuarios
var noMentions = &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}}

// Defer (para trabajos >3s). El flag decide si lo que sigue es efímero.
func (r *Router) deferReply(ic *discordgo.InteractionCreate, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := r.s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		r.log.Warn("defer", zap.Error(err))
	}
	return err
}

func (r *Router) followup(ic *discordgo.InteractionCreate, ephemeral bool, content string, embeds ...*discordgo.MessageEmbed) {
	params := &discordgo.WebhookParams{
		Content:         truncate(content, maxContent),
		Embeds:          embeds,
		AllowedMentions: noMentions,
	}
	if ephemeral {
		params.Flags = discordgo.MessageFlagsEphemeral
	}
	_, err := r.s.FollowupMessageCreate(ic.Interaction, true, params)
	if err == nil {
		return
	}
	// Fallback sólo si todavía no hay respuesta (webhook desconocido)
	var reqErr *discordgo.RESTError
	if errors.As(err, &reqErr) && reqErr.Message != nil && reqErr.Message.Code == 10015 {
		data := &discordgo.InteractionResponseData{
			Content:         params.Content,
			Embeds:          embeds,
			AllowedMentions: noMentions,
		}
		if ephemeral {
			data.Flags = discordgo.MessageFlagsEphemeral
		}
		_ = r.s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: data,
		})
		return
	}
	r.log.Warn("followup", zap.Error(err))
}

func (r *Router) reply(c *Ctx, private bool, content string, embeds ...*discordgo.MessageEmbed) {
	if c.Event != nil {
		r.followup(c.Event, private || c.ephemeral, content, embeds...)
		return
	}
	msg := &discordgo.MessageSend{
		Content:         truncate(content, maxContent),
		Embeds:          embeds,
		AllowedMentions: noMentions,
	}
	if c.Message != nil {
		msg.Reference = c.Message.Reference()
	}
	if _, err := r.s.ChannelMessageSendComplex(c.ChannelID, msg); err != nil {
		r.log.Warn("reply", zap.String("channel", c.ChannelID), zap.Error(err))
	}
}

// send manda un mensaje suelto a un canal (anuncios, logs, bienvenidas).
func (r *Router) send(channelID, content string, embeds ...*discordgo.MessageEmbed) {
	sendTo(r.s, r.log, channelID, content, embeds...)
}

func sendTo(s *discordgo.Session, log *zap.Logger, channelID, content string, embeds ...*discordgo.MessageEmbed) {
	if channelID == "" {
		return
	}
	_, err := s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         truncate(content, maxContent),
		Embeds:          embeds,
		AllowedMentions: noMentions,
	})
	if err != nil {
		log.Warn("send", zap.String("channel", channelID), zap.Error(err))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
