package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/alpine-bot/internal/app/music"
)

const (
	optString  = discordgo.ApplicationCommandOptionString
	optInt     = discordgo.ApplicationCommandOptionInteger
	optNumber  = discordgo.ApplicationCommandOptionNumber
	optBool    = discordgo.ApplicationCommandOptionBoolean
	optUser    = discordgo.ApplicationCommandOptionUser
	optChannel = discordgo.ApplicationCommandOptionChannel
	optRole    = discordgo.ApplicationCommandOptionRole
)

func (r *Router) buildCommands() []*Command {
	return []*Command{
		// ---- música ----
		{Name: "connect", Aliases: []string{"join"}, Description: "Conecta el bot a tu canal de voz", Handler: r.cmdConnect},
		{
			Name: "play", Aliases: []string{"p"}, Description: "Busca y encola un track o playlist",
			Params: []Param{
				{Name: "query", Description: "Búsqueda o URL", Type: optString, Required: true, Rest: true},
				{Name: "next", Description: "Ponerlo primero en la cola (DJ)", Type: optBool},
			},
			Handler: r.cmdPlay,
		},
		{Name: "pause", Description: "Pausa (o vota para pausar)", Handler: r.voteHandler(music.ActionPause)},
		{Name: "resume", Description: "Reanuda (o vota para reanudar)", Handler: r.voteHandler(music.ActionResume)},
		{Name: "skip", Aliases: []string{"s"}, Description: "Saltea el track (o vota)", Handler: r.voteHandler(music.ActionSkip)},
		{Name: "stop", Description: "Corta todo y desconecta (o vota)", Handler: r.voteHandler(music.ActionStop)},
		{Name: "shuffle", Description: "Mezcla la cola (o vota)", Handler: r.voteHandler(music.ActionShuffle)},
		{Name: "disconnect", Aliases: []string{"dc", "leave"}, Description: "Desconecta el bot (DJ)", Handler: r.cmdDisconnect},
		{
			Name: "queue", Aliases: []string{"q"}, Description: "Muestra la cola",
			Params:  []Param{{Name: "page", Description: "Página", Type: optInt}},
			Handler: r.cmdQueue,
		},
		{Name: "nowplaying", Aliases: []string{"np"}, Description: "Qué está sonando", Handler: r.cmdNowPlaying},
		{
			Name: "volume", Aliases: []string{"vol"}, Description: "Ver o cambiar el volumen (DJ)",
			Params:  []Param{{Name: "level", Description: "0-200", Type: optInt}},
			Handler: r.cmdVolume,
		},
		{Name: "loop", Description: "Repite el track actual (DJ)", Handler: r.cmdLoop},
		{
			Name: "seek", Description: "Salta a un momento del track (DJ)",
			Params:  []Param{{Name: "time", Description: "1:30, 90 o 1m30s", Type: optString, Required: true}},
			Handler: r.cmdSeek,
		},
		{
			Name: "fastforward", Aliases: []string{"ff"}, Description: "Adelanta N segundos (DJ)",
			Params:  []Param{{Name: "seconds", Description: "Segundos (10 por defecto)", Type: optInt}},
			Handler: r.cmdShift(1),
		},
		{
			Name: "rewind", Aliases: []string{"rw"}, Description: "Atrasa N segundos (DJ)",
			Params:  []Param{{Name: "seconds", Description: "Segundos (10 por defecto)", Type: optInt}},
			Handler: r.cmdShift(-1),
		},
		{
			Name: "filter", Description: "Filtros de audio (DJ)",
			Subs: []Sub{
				{Name: "equalizer", Description: "Ganancia de una banda", Params: []Param{
					{Name: "band", Description: "0-14", Type: optInt, Required: true},
					{Name: "gain", Description: "-0.25 a 1.0", Type: optNumber, Required: true},
				}},
				{Name: "speed", Description: "Velocidad", Params: []Param{{Name: "value", Description: "0.25-3", Type: optNumber, Required: true}}},
				{Name: "pitch", Description: "Tono", Params: []Param{{Name: "value", Description: "0.25-3", Type: optNumber, Required: true}}},
				{Name: "tremolo", Description: "Trémolo", Params: []Param{
					{Name: "frequency", Description: "Hz (>0)", Type: optNumber, Required: true},
					{Name: "depth", Description: "0-1", Type: optNumber, Required: true},
				}},
				{Name: "vibrato", Description: "Vibrato", Params: []Param{
					{Name: "frequency", Description: "Hz (0-14)", Type: optNumber, Required: true},
					{Name: "depth", Description: "0-1", Type: optNumber, Required: true},
				}},
				{Name: "rotation", Description: "Audio 8D", Params: []Param{{Name: "hz", Description: "Hz", Type: optNumber, Required: true}}},
				{Name: "channelmix", Description: "Mezcla de canales", Params: []Param{
					{Name: "mode", Description: "Modo", Type: optString, Required: true, Choices: []string{"mono", "swap", "left", "right", "stereo"}},
				}},
				{Name: "lowpass", Description: "Pasa bajos", Params: []Param{{Name: "smoothing", Description: ">1", Type: optNumber, Required: true}}},
				{Name: "reset", Description: "Quita todos los filtros"},
			},
			Handler: r.cmdFilter,
		},
		{
			Name: "swap_dj", Aliases: []string{"swapdj"}, Description: "Pasa el DJ a otro miembro del canal",
			Params:  []Param{{Name: "member", Description: "Nuevo DJ", Type: optUser, Required: true}},
			Handler: r.cmdSwapDJ,
		},
		{
			Name: "remove", Aliases: []string{"rm"}, Description: "Quita un track de la cola (DJ)",
			Params:  []Param{{Name: "index", Description: "Posición en la cola", Type: optInt, Required: true}},
			Handler: r.cmdRemove,
		},
		{Name: "clear", Description: "Vacía la cola (DJ)", Handler: r.cmdClear},
		{
			Name: "announce", Description: "Anunciar cada track nuevo (DJ)",
			Params:  []Param{{Name: "enabled", Description: "on/off", Type: optBool, Required: true}},
			Handler: r.cmdAnnounce,
		},
		{
			Name: "duplicates", Description: "Permitir tracks repetidos en la cola (DJ)",
			Params:  []Param{{Name: "enabled", Description: "on/off", Type: optBool, Required: true}},
			Handler: r.cmdDuplicates,
		},

		// ---- settings ----
		{
			Name: "prefix", Description: "Prefijos de comandos de texto", Perm: PermAdmin,
			Subs: []Sub{
				{Name: "add", Description: "Agrega un prefijo", Params: []Param{{Name: "prefix", Description: "Prefijo", Type: optString, Required: true}}},
				{Name: "remove", Description: "Quita un prefijo", Params: []Param{{Name: "prefix", Description: "Prefijo", Type: optString, Required: true}}},
				{Name: "list", Description: "Lista los prefijos"},
			},
			Handler: r.cmdPrefix,
		},
		{
			Name: "logging", Description: "Canal de logs", Perm: PermAdmin, Ephemeral: true,
			Subs: []Sub{
				{Name: "channel", Description: "Canal de logs", Params: []Param{{Name: "channel", Description: "Canal", Type: optChannel, Required: true}}},
				{Name: "toggle", Description: "Prende o apaga", Params: []Param{{Name: "enabled", Description: "on/off", Type: optBool, Required: true}}},
				{Name: "events", Description: "Qué se loguea", Params: []Param{
					{Name: "kind", Description: "Tipo", Type: optString, Required: true, Choices: []string{"member", "message", "mod"}},
					{Name: "enabled", Description: "on/off", Type: optBool, Required: true},
				}},
				{Name: "show", Description: "Configuración actual"},
				{Name: "reset", Description: "Borra la configuración"},
			},
			Handler: r.cmdLogging,
		},
		{
			Name: "joinleave", Description: "Mensajes de bienvenida y despedida", Perm: PermAdmin, Ephemeral: true,
			Subs: []Sub{
				{Name: "channel", Description: "Canal de los mensajes", Params: []Param{{Name: "channel", Description: "Canal", Type: optChannel, Required: true}}},
				{Name: "join", Description: "Prende o apaga bienvenidas", Params: []Param{{Name: "enabled", Description: "on/off", Type: optBool, Required: true}}},
				{Name: "leave", Description: "Prende o apaga despedidas", Params: []Param{{Name: "enabled", Description: "on/off", Type: optBool, Required: true}}},
				{Name: "joinmessage", Description: "Plantilla: {user} {mention} {server}", Params: []Param{{Name: "message", Description: "Texto", Type: optString, Required: true, Rest: true}}},
				{Name: "leavemessage", Description: "Plantilla: {user} {mention} {server}", Params: []Param{{Name: "message", Description: "Texto", Type: optString, Required: true, Rest: true}}},
				{Name: "show", Description: "Configuración actual"},
				{Name: "reset", Description: "Borra la configuración"},
			},
			Handler: r.cmdJoinLeave,
		},
		{
			Name: "verification", Description: "Rol de verificación", Perm: PermAdmin, Ephemeral: true,
			Subs: []Sub{
				{Name: "role", Description: "Rol a otorgar", Params: []Param{{Name: "role", Description: "Rol", Type: optRole, Required: true}}},
				{Name: "channel", Description: "Canal donde se verifica", Params: []Param{{Name: "channel", Description: "Canal", Type: optChannel, Required: true}}},
				{Name: "toggle", Description: "Prende o apaga", Params: []Param{{Name: "enabled", Description: "on/off", Type: optBool, Required: true}}},
				{Name: "show", Description: "Configuración actual"},
				{Name: "reset", Description: "Borra la configuración"},
			},
			Handler: r.cmdVerification,
		},
		{Name: "verify", Description: "Verificarte en el servidor", Ephemeral: true, Handler: r.cmdVerify},
		{
			Name: "disable", Description: "Apaga un comando o un canal", Perm: PermAdmin, NoDisable: true,
			Params:  []Param{{Name: "target", Description: "Comando o #canal", Type: optString, Required: true}},
			Handler: r.cmdToggleTarget(true),
		},
		{
			Name: "enable", Description: "Prende un comando o un canal", Perm: PermAdmin, NoDisable: true,
			Params:  []Param{{Name: "target", Description: "Comando o #canal", Type: optString, Required: true}},
			Handler: r.cmdToggleTarget(false),
		},
		{
			Name: "autounarchive", Description: "Hilos que se desarchivan solos", Perm: PermAdmin,
			Subs: []Sub{
				{Name: "add", Description: "Agrega un hilo", Params: []Param{{Name: "thread", Description: "Hilo", Type: optChannel, Required: true}}},
				{Name: "remove", Description: "Quita un hilo", Params: []Param{{Name: "thread", Description: "Hilo", Type: optChannel, Required: true}}},
				{Name: "list", Description: "Lista los hilos"},
			},
			Handler: r.cmdAutoUnarchive,
		},
		{
			Name: "highlight", Aliases: []string{"hl"}, Description: "Avisos por DM cuando alguien dice una palabra", Ephemeral: true,
			Subs: []Sub{
				{Name: "add", Description: "Agrega una palabra", Params: []Param{{Name: "word", Description: "Palabra o frase", Type: optString, Required: true, Rest: true}}},
				{Name: "remove", Description: "Quita una palabra", Params: []Param{{Name: "word", Description: "Palabra o frase", Type: optString, Required: true, Rest: true}}},
				{Name: "block", Description: "No avisarte por mensajes de alguien", Params: []Param{{Name: "member", Description: "Miembro", Type: optUser, Required: true}}},
				{Name: "unblock", Description: "Vuelve a avisarte por alguien", Params: []Param{{Name: "member", Description: "Miembro", Type: optUser, Required: true}}},
				{Name: "list", Description: "Tus palabras y bloqueos"},
				{Name: "clear", Description: "Borra todas tus palabras y bloqueos"},
			},
			Handler: r.cmdHighlight,
		},
		{
			Name: "timezone", Aliases: []string{"tz"}, Description: "Tu zona horaria (ej. America/Caracas)", Ephemeral: true,
			Params:  []Param{{Name: "zone", Description: "Zona IANA; vacío para ver la actual", Type: optString}},
			Handler: r.cmdTimezone,
		},
		{
			Name: "color", Description: "Color de tus embeds (#rrggbb)", Ephemeral: true,
			Params:  []Param{{Name: "hex", Description: "#rrggbb o reset", Type: optString, Required: true}},
			Handler: r.cmdColor,
		},
		{Name: "resetme", Description: "Borra tu zona, color y highlights", Ephemeral: true, Handler: r.cmdResetMe},
		{
			Name: "blacklist", Description: "Bloquea usuarios del bot (owners)", Perm: PermOwner, Ephemeral: true, NoDisable: true,
			Subs: []Sub{
				{Name: "add", Description: "Bloquea", Params: []Param{
					{Name: "user", Description: "Usuario", Type: optUser, Required: true},
					{Name: "reason", Description: "Motivo", Type: optString, Rest: true},
					{Name: "duration", Description: "30m, 12h, 7d (vacío = siempre)", Type: optString},
				}},
				{Name: "remove", Description: "Desbloquea", Params: []Param{{Name: "user", Description: "Usuario", Type: optUser, Required: true}}},
			},
			Handler: r.cmdBlacklist,
		},
	}
}

// slashCommands traduce la tabla a lo que espera la API.
func slashCommands(list []*Command) []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(list))
	dm := false
	for _, cmd := range list {
		ac := &discordgo.ApplicationCommand{
			Name:         cmd.Name,
			Description:  cmd.Description,
			DMPermission: &dm,
		}
		if cmd.Perm == PermAdmin {
			p := int64(discordgo.PermissionManageGuild)
			ac.DefaultMemberPermissions = &p
		}
		for _, sub := range cmd.Subs {
			ac.Options = append(ac.Options, &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        sub.Name,
				Description: sub.Description,
				Options:     slashOptions(sub.Params),
			})
		}
		ac.Options = append(ac.Options, slashOptions(cmd.Params)...)
		out = append(out, ac)
	}
	return out
}

func slashOptions(params []Param) []*discordgo.ApplicationCommandOption {
	var out []*discordgo.ApplicationCommandOption
	for _, p := range params {
		o := &discordgo.ApplicationCommandOption{
			Type:        p.Type,
			Name:        p.Name,
			Description: p.Description,
			Required:    p.Required,
		}
		for _, c := range p.Choices {
			o.Choices = append(o.Choices, &discordgo.ApplicationCommandOptionChoice{Name: c, Value: c})
		}
		out = append(out, o)
	}
	return out
}
