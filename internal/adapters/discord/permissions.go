package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

const (
	adminPerms     = discordgo.PermissionAdministrator | discordgo.PermissionManageGuild
	moderatorPerms = adminPerms | discordgo.PermissionVoiceMoveMembers
)

func hasAny(perms, mask int64) bool { return perms&mask != 0 }

func (r *Router) isOwner(userID string) bool {
	_, ok := r.owners[userID]
	return ok
}

// perms del autor en el canal del comando. En slash Discord ya las manda
// calculadas; en prefijo salen del state (dueño de la guild = todo).
func (r *Router) perms(c *Ctx) int64 {
	if c.Event != nil && c.Event.Member != nil {
		return c.Event.Member.Permissions
	}
	if c.Message != nil {
		if p, err := r.s.State.MessagePermissions(c.Message); err == nil {
			return p
		}
	}
	p, err := r.s.State.UserChannelPermissions(c.UserID, c.ChannelID)
	if err != nil {
		return 0
	}
	return p
}

func (r *Router) isAdmin(c *Ctx) bool {
	return r.isOwner(c.UserID) || hasAny(r.perms(c), adminPerms)
}

// allowed chequea el nivel del comando.
func (r *Router) allowed(cmd *Command, c *Ctx) bool {
	switch cmd.Perm {
	case PermOwner:
		return r.isOwner(c.UserID)
	case PermAdmin:
		return r.isAdmin(c)
	}
	return true
}

// member es la vista que necesita el core: moderador = admin, manage server o mover miembros.
func (r *Router) member(c *Ctx) domain.Member {
	m := domain.Member{ID: c.UserID, Moderator: hasAny(r.perms(c), moderatorPerms)}
	if c.Member != nil && c.Member.User != nil {
		m.Bot = c.Member.User.Bot
	}
	return m
}
