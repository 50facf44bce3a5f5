package discord

import (
	"regexp"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reSlashName = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

func testRouter() *Router {
	return NewRouter(nil, RouterConfig{OwnerIDs: []string{"1"}}, nil, nil, nil, nil)
}

func TestCommands_UniqueNames(t *testing.T) {
	r := testRouter()
	seen := map[string]string{}
	for _, cmd := range r.list {
		require.NotNil(t, cmd.Handler, cmd.Name)
		for _, n := range append([]string{cmd.Name}, cmd.Aliases...) {
			if prev, dup := seen[n]; dup {
				t.Fatalf("%q usado por %s y %s", n, prev, cmd.Name)
			}
			seen[n] = cmd.Name
			assert.Same(t, cmd, r.commands[n])
		}
	}
	for _, name := range buttonCommands {
		assert.Contains(t, r.commands, name)
	}
}

// lo que Discord rechaza en un bulk overwrite
func TestSlashCommands_Valid(t *testing.T) {
	r := testRouter()
	var check func(path string, opts []*discordgo.ApplicationCommandOption)
	check = func(path string, opts []*discordgo.ApplicationCommandOption) {
		assert.LessOrEqual(t, len(opts), 25, path)
		optional := false
		for _, o := range opts {
			assert.Regexp(t, reSlashName, o.Name, path)
			assert.NotEmpty(t, o.Description, path+" "+o.Name)
			assert.LessOrEqual(t, len([]rune(o.Description)), 100, path+" "+o.Name)
			if o.Type == discordgo.ApplicationCommandOptionSubCommand {
				check(path+" "+o.Name, o.Options)
				continue
			}
			if o.Required {
				assert.False(t, optional, "%s: %s requerido después de un opcional", path, o.Name)
			} else {
				optional = true
			}
		}
	}

	cmds := slashCommands(r.list)
	require.Len(t, cmds, len(r.list))
	for _, ac := range cmds {
		assert.Regexp(t, reSlashName, ac.Name)
		assert.LessOrEqual(t, len([]rune(ac.Description)), 100, ac.Name)
		require.NotNil(t, ac.DMPermission)
		assert.False(t, *ac.DMPermission)
		check(ac.Name, ac.Options)
	}
}

func TestSlashCommands_AdminDefaultPerms(t *testing.T) {
	r := testRouter()
	for _, ac := range slashCommands(r.list) {
		cmd := r.commands[ac.Name]
		if cmd.Perm == PermAdmin {
			require.NotNil(t, ac.DefaultMemberPermissions, ac.Name)
			assert.Equal(t, int64(discordgo.PermissionManageGuild), *ac.DefaultMemberPermissions)
		} else {
			assert.Nil(t, ac.DefaultMemberPermissions, ac.Name)
		}
	}
}

func TestPermissions_Masks(t *testing.T) {
	assert.True(t, hasAny(discordgo.PermissionManageGuild, adminPerms))
	assert.True(t, hasAny(discordgo.PermissionVoiceMoveMembers, moderatorPerms))
	assert.False(t, hasAny(discordgo.PermissionVoiceMoveMembers, adminPerms))
	assert.False(t, hasAny(discordgo.PermissionSendMessages|discordgo.PermissionViewChannel, moderatorPerms))

	r := testRouter()
	assert.True(t, r.isOwner("1"))
	assert.False(t, r.isOwner("2"))
	assert.True(t, r.allowed(&Command{Perm: PermOwner}, &Ctx{UserID: "1"}))
	assert.False(t, r.allowed(&Command{Perm: PermOwner}, &Ctx{UserID: "2"}))
	assert.True(t, r.allowed(&Command{}, &Ctx{UserID: "2"}))
}

func TestCommands_SettingsCanBeReset(t *testing.T) {
	r := testRouter()
	has := func(cmd, sub string) bool {
		for _, s := range r.commands[cmd].Subs {
			if s.Name == sub {
				return true
			}
		}
		return false
	}
	for _, name := range []string{"logging", "joinleave", "verification"} {
		assert.True(t, has(name, "reset"), name)
	}
	assert.True(t, has("highlight", "clear"))
	assert.Contains(t, r.commands, "resetme")
}
