package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/alpine-bot/internal/app/music"
	"github.com/jose-valero/alpine-bot/internal/domain"
)

// Voice mueve al bot entre canales (el audio lo manda el nodo, acá sólo va el
// op 4 del gateway) y lee los voice states del cache de discordgo.
type Voice struct {
	s *discordgo.Session
}

var (
	_ music.VoiceConnector = (*Voice)(nil)
	_ music.VoiceStates    = (*Voice)(nil)
)

func NewVoice(s *discordgo.Session) *Voice { return &Voice{s: s} }

func (v *Voice) Join(ctx context.Context, guildID, channelID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := v.s.ChannelVoiceJoinManual(guildID, channelID, false, true); err != nil {
		return fmt.Errorf("voice join: %w", err)
	}
	return nil
}

func (v *Voice) Leave(ctx context.Context, guildID string) error {
	if err := v.s.ChannelVoiceJoinManual(guildID, "", false, true); err != nil {
		return fmt.Errorf("voice leave: %w", err)
	}
	return nil
}

// ChannelOf devuelve el canal de voz del usuario ("" si no está en voz).
func (v *Voice) ChannelOf(guildID, userID string) string {
	vs, err := v.s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}

// ChannelMembers lista a quienes están en channelID en el orden en que el
// state guardó sus voice states.
func (v *Voice) ChannelMembers(guildID, channelID string) []domain.Member {
	type seat struct {
		userID string
		member *discordgo.Member
	}
	var seats []seat

	v.s.State.RLock()
	if g, ok := v.guildLocked(guildID); ok {
		for _, vs := range g.VoiceStates {
			if vs.ChannelID == channelID {
				seats = append(seats, seat{userID: vs.UserID, member: vs.Member})
			}
		}
	}
	v.s.State.RUnlock()

	// los permisos toman su propio lock del state
	out := make([]domain.Member, 0, len(seats))
	for _, st := range seats {
		out = append(out, v.memberOf(guildID, channelID, st.userID, st.member))
	}
	return out
}

func (v *Voice) guildLocked(guildID string) (*discordgo.Guild, bool) {
	for _, g := range v.s.State.Guilds {
		if g.ID == guildID {
			return g, true
		}
	}
	return nil, false
}

// Member arma la vista del core para userID dentro de channelID.
func (v *Voice) Member(guildID, channelID, userID string) domain.Member {
	var m *discordgo.Member
	if vs, err := v.s.State.VoiceState(guildID, userID); err == nil {
		m = vs.Member
	}
	return v.memberOf(guildID, channelID, userID, m)
}

func (v *Voice) memberOf(guildID, channelID, userID string, m *discordgo.Member) domain.Member {
	if m == nil || m.User == nil {
		m, _ = v.s.State.Member(guildID, userID)
	}
	out := domain.Member{ID: userID}
	if m != nil && m.User != nil {
		out.Bot = m.User.Bot
	}
	if p, err := v.s.State.UserChannelPermissions(userID, channelID); err == nil {
		out.Moderator = hasAny(p, moderatorPerms)
	}
	return out
}
