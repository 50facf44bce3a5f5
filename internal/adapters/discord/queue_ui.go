package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/alpine-bot/internal/app/music"
	"github.com/jose-valero/alpine-bot/internal/domain"
)

const (
	queuePageSize = 10
	defaultColor  = 0x5865F2

	// custom ids de los botones del now playing
	btnPause  = "music:pause"
	btnResume = "music:resume"
	btnSkip   = "music:skip"
	btnStop   = "music:stop"
)

func trackLine(t domain.Track) string {
	title := t.Title
	if title == "" {
		title = t.Query
	}
	if t.URI != "" {
		title = fmt.Sprintf("[%s](%s)", escapeMarkdown(title), t.URI)
	} else {
		title = "**" + escapeMarkdown(title) + "**"
	}
	return title
}

func trackLength(t domain.Track) string {
	if t.IsStream {
		return "🔴 LIVE"
	}
	return fmtDuration(t.Duration)
}

var mdEscaper = strings.NewReplacer("*", "\\*", "_", "\\_", "`", "\\`", "~", "\\~", "|", "\\|", "[", "\\[", "]", "\\]")

func escapeMarkdown(s string) string { return mdEscaper.Replace(s) }

// progressBar dibuja la posición sobre 15 casilleros.
func progressBar(pos, total time.Duration) string {
	const width = 15
	if total <= 0 {
		return strings.Repeat("▬", width)
	}
	at := int(int64(width) * int64(pos) / int64(total))
	at = min(max(at, 0), width-1)
	return strings.Repeat("▬", at) + "🔘" + strings.Repeat("▬", width-at-1)
}

func nowPlayingEmbed(t domain.Track, pos time.Duration, color int) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       "🎶 Sonando",
		Description: trackLine(t),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Autor", Value: orDash(t.Author), Inline: true},
			{Name: "Duración", Value: trackLength(t), Inline: true},
		},
	}
	if t.RequesterID != "" {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Pedido por", Value: userMention(t.RequesterID), Inline: true})
	}
	if pos > 0 && !t.IsStream {
		e.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%s %s / %s", progressBar(pos, t.Duration), fmtDuration(pos), fmtDuration(t.Duration)),
		}
	}
	if t.ArtworkURL != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.ArtworkURL}
	}
	return e
}

// queueEmbed arma la página page (1-based) de la cola. Devuelve la página
// efectiva, recortada a las que existen.
func queueEmbed(snap music.Snapshot, page, color int) (*discordgo.MessageEmbed, int) {
	pages := max((len(snap.Queue)+queuePageSize-1)/queuePageSize, 1)
	page = min(max(page, 1), pages)

	var b strings.Builder
	if snap.Current != nil {
		loop := ""
		if snap.Looping {
			loop = " 🔂"
		}
		fmt.Fprintf(&b, "**Ahora:** %s `%s`%s\n\n", trackLine(*snap.Current), trackLength(*snap.Current), loop)
	}
	if len(snap.Queue) == 0 {
		b.WriteString("Nada en cola.")
	}
	from := (page - 1) * queuePageSize
	to := min(from+queuePageSize, len(snap.Queue))
	var total time.Duration
	for _, t := range snap.Queue {
		total += t.Duration
	}
	for i := from; i < to; i++ {
		t := snap.Queue[i]
		fmt.Fprintf(&b, "%d) %s `%s` · %s\n", i+1, trackLine(t), trackLength(t), userMention(t.RequesterID))
	}

	e := &discordgo.MessageEmbed{
		Title:       "📜 Cola",
		Description: truncate(b.String(), 4096),
		Color:       color,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Página %d/%d · %d tracks · %s · vol %d%%", page, pages, len(snap.Queue), fmtDuration(total), snap.Volume),
		},
	}
	return e, page
}

func playerButtons() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Style: discordgo.SecondaryButton, CustomID: btnPause, Emoji: &discordgo.ComponentEmoji{Name: "⏸️"}},
				discordgo.Button{Style: discordgo.SecondaryButton, CustomID: btnResume, Emoji: &discordgo.ComponentEmoji{Name: "▶️"}},
				discordgo.Button{Style: discordgo.PrimaryButton, CustomID: btnSkip, Emoji: &discordgo.ComponentEmoji{Name: "⏭️"}},
				discordgo.Button{Style: discordgo.DangerButton, CustomID: btnStop, Emoji: &discordgo.ComponentEmoji{Name: "⏹️"}},
			},
		},
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return s
}

// colorFor usa el color que eligió el usuario si tiene uno.
func (r *Router) colorFor(userID string) int {
	if u, ok := r.settings.Cache().User(userID); ok && u.EmbedColor != nil {
		return *u.EmbedColor
	}
	return defaultColor
}
