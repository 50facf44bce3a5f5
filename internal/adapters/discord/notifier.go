package discord

import (
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/jose-valero/alpine-bot/internal/app/music"
	"github.com/jose-valero/alpine-bot/internal/domain"
)

const npDebounce = 300 * time.Millisecond

// messenger es lo que el Notifier usa de *discordgo.Session.
type messenger interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

type posted struct {
	channelID string
	messageID string
}

// Notifier publica en el canal de texto de la sesión. Un skip tras otro sólo
// deja el último "sonando" (debounce por guild) y el mensaje anterior se borra.
type Notifier struct {
	out      messenger
	log      *zap.Logger
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	last    map[string]posted
}

var _ music.Notifier = (*Notifier)(nil)

func NewNotifier(out messenger, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		out:      out,
		log:      log,
		debounce: npDebounce,
		pending:  map[string]*time.Timer{},
		last:     map[string]posted{},
	}
}

func (n *Notifier) TrackStarted(guildID, channelID string, t domain.Track) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if tm, ok := n.pending[guildID]; ok {
		tm.Stop()
	}
	var tm *time.Timer
	tm = time.AfterFunc(n.debounce, func() {
		n.mu.Lock()
		if n.pending[guildID] != tm {
			n.mu.Unlock()
			return
		}
		delete(n.pending, guildID)
		n.mu.Unlock()
		n.postNowPlaying(guildID, channelID, t)
	})
	n.pending[guildID] = tm
}

func (n *Notifier) postNowPlaying(guildID, channelID string, t domain.Track) {
	n.dropLast(guildID)
	msg, err := n.out.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:          []*discordgo.MessageEmbed{nowPlayingEmbed(t, 0, defaultColor)},
		Components:      playerButtons(),
		AllowedMentions: noMentions,
	})
	if err != nil {
		n.log.Warn("now playing", zap.String("guild", guildID), zap.Error(err))
		return
	}
	n.mu.Lock()
	n.last[guildID] = posted{channelID: channelID, messageID: msg.ID}
	n.mu.Unlock()
}

// dropLast borra el "sonando" anterior de la guild, si hay.
func (n *Notifier) dropLast(guildID string) {
	n.mu.Lock()
	p, ok := n.last[guildID]
	delete(n.last, guildID)
	n.mu.Unlock()
	if !ok {
		return
	}
	if err := n.out.ChannelMessageDelete(p.channelID, p.messageID); err != nil {
		n.log.Debug("borrar now playing", zap.String("guild", guildID), zap.Error(err))
	}
}

func (n *Notifier) PlaybackError(guildID, channelID string, t *domain.Track, err error) {
	what := "el track"
	if t != nil {
		what = trackLine(*t)
	}
	text := "⚠️ No pude reproducir " + what + "."
	if errors.Is(err, domain.ErrTrackStuck) {
		text = "⚠️ " + what + " se trabó."
	}
	n.send(guildID, channelID, text)
}

func (n *Notifier) SessionEnded(guildID, channelID string, reason music.CloseReason) {
	n.mu.Lock()
	if tm, ok := n.pending[guildID]; ok {
		tm.Stop()
		delete(n.pending, guildID)
	}
	n.mu.Unlock()
	n.dropLast(guildID)

	// requested no se anuncia: ya contestó el comando
	text := map[music.CloseReason]string{
		music.CloseStopped:   "⏹️ Música cortada, me voy.",
		music.CloseAlone:     "💤 Me fui porque quedé solo en el canal.",
		music.CloseVoiceLost: "🔌 Perdí la conexión de voz.",
		music.CloseShutdown:  "🔧 Me estoy reiniciando, vuelvo enseguida.",
	}[reason]
	if text != "" {
		n.send(guildID, channelID, text)
	}
}

func (n *Notifier) send(guildID, channelID, content string) {
	if channelID == "" {
		return
	}
	_, err := n.out.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         truncate(content, maxContent),
		AllowedMentions: noMentions,
	})
	if err != nil {
		n.log.Warn("notify", zap.String("guild", guildID), zap.Error(err))
	}
}
