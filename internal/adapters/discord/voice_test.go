package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

func stateVoice(t *testing.T) *Voice {
	t.Helper()
	st := discordgo.NewState()
	err := st.GuildAdd(&discordgo.Guild{
		ID:      "g",
		Name:    "Alpine",
		OwnerID: "owner",
		Roles: []*discordgo.Role{
			{ID: "g", Permissions: discordgo.PermissionViewChannel | discordgo.PermissionVoiceConnect},
			{ID: "mods", Permissions: discordgo.PermissionVoiceMoveMembers},
		},
		Channels: []*discordgo.Channel{
			{ID: "vc", GuildID: "g", Type: discordgo.ChannelTypeGuildVoice},
			{ID: "other", GuildID: "g", Type: discordgo.ChannelTypeGuildVoice},
		},
		Members: []*discordgo.Member{
			{User: &discordgo.User{ID: "a"}},
			{User: &discordgo.User{ID: "bot", Bot: true}},
			{User: &discordgo.User{ID: "m"}, Roles: []string{"mods"}},
			{User: &discordgo.User{ID: "owner"}},
			{User: &discordgo.User{ID: "x"}},
		},
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: "g", UserID: "a", ChannelID: "vc"},
			{GuildID: "g", UserID: "bot", ChannelID: "vc"},
			{GuildID: "g", UserID: "x", ChannelID: "other"},
			{GuildID: "g", UserID: "m", ChannelID: "vc"},
			{GuildID: "g", UserID: "owner", ChannelID: "vc"},
		},
	})
	require.NoError(t, err)
	return NewVoice(&discordgo.Session{State: st})
}

func TestVoice_ChannelMembers(t *testing.T) {
	v := stateVoice(t)

	got := v.ChannelMembers("g", "vc")
	assert.Equal(t, []domain.Member{
		{ID: "a"},
		{ID: "bot", Bot: true},
		{ID: "m", Moderator: true},
		{ID: "owner", Moderator: true},
	}, got)

	assert.Equal(t, []domain.Member{{ID: "x"}}, v.ChannelMembers("g", "other"))
	assert.Empty(t, v.ChannelMembers("nope", "vc"))
}

func TestVoice_ChannelOf(t *testing.T) {
	v := stateVoice(t)
	assert.Equal(t, "vc", v.ChannelOf("g", "a"))
	assert.Equal(t, "other", v.ChannelOf("g", "x"))
	assert.Equal(t, "", v.ChannelOf("g", "ghost"))
	assert.Equal(t, "", v.ChannelOf("nope", "a"))
}

func TestVoice_Member(t *testing.T) {
	v := stateVoice(t)
	assert.Equal(t, domain.Member{ID: "m", Moderator: true}, v.Member("g", "vc", "m"))
	assert.Equal(t, domain.Member{ID: "bot", Bot: true}, v.Member("g", "vc", "bot"))
	// sin member en el state no hay permisos que calcular
	assert.Equal(t, domain.Member{ID: "ghost"}, v.Member("g", "vc", "ghost"))
}
