package discord

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

// menciones de usuario <@id> <@!id>, de rol <@&id> y de canal <#id>
var reMention = regexp.MustCompile(`^<(?:@[!&]?|#)(\d+)>$`)

func parseIDs(raw string) []string {
	ids := []string{}
	for _, tok := range strings.Fields(raw) {
		if m := reMention.FindStringSubmatch(tok); len(m) == 2 {
			ids = append(ids, m[1])
			continue
		}
		if isDigits(tok) {
			ids = append(ids, tok)
		}
	}
	return ids
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// fmtDuration: m:ss o h:mm:ss
func fmtDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d / time.Second)
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, (s/60)%60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// parseTimestamp acepta "90", "1:30", "1:02:03" o "1m30s".
func parseTimestamp(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: tiempo vacío", domain.ErrInvalidValue)
	}
	if strings.Contains(raw, ":") {
		parts := strings.Split(raw, ":")
		if len(parts) > 3 {
			return 0, fmt.Errorf("%w: tiempo %q", domain.ErrInvalidValue, raw)
		}
		var total int
		for i, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 || (i > 0 && n > 59) {
				return 0, fmt.Errorf("%w: tiempo %q", domain.ErrInvalidValue, raw)
			}
			total = total*60 + n
		}
		return time.Duration(total) * time.Second, nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("%w: tiempo %q", domain.ErrInvalidValue, raw)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: tiempo %q", domain.ErrInvalidValue, raw)
	}
	return d, nil
}

// parseTTL: "30m", "12h", "7d", "2w". Vacío o "0" es para siempre.
func parseTTL(raw string) (time.Duration, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == "0" {
		return 0, nil
	}
	unit := time.Duration(0)
	switch {
	case strings.HasSuffix(raw, "d"):
		unit = 24 * time.Hour
	case strings.HasSuffix(raw, "w"):
		unit = 7 * 24 * time.Hour
	}
	if unit > 0 {
		n, err := strconv.Atoi(raw[:len(raw)-1])
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("%w: duración %q", domain.ErrInvalidValue, raw)
		}
		return time.Duration(n) * unit, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: duración %q", domain.ErrInvalidValue, raw)
	}
	return d, nil
}

func parseBoolWord(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "on", "yes", "si", "sí", "1":
		return true, true
	case "false", "off", "no", "0":
		return false, true
	}
	return false, false
}

// renderTemplate reemplaza {user}, {mention} y {server} en los mensajes de bienvenida/despedida.
func renderTemplate(tmpl string, u *discordgo.User, server string) string {
	name, mention := "", ""
	if u != nil {
		name = u.DisplayName()
		mention = u.Mention()
	}
	return strings.NewReplacer("{user}", name, "{mention}", mention, "{server}", server).Replace(tmpl)
}

// matchPrefix devuelve el resto del mensaje si arranca con alguno de los
// prefijos (gana el más largo) o con la mención del bot.
func matchPrefix(content string, prefixes []string, botID string) (string, bool) {
	best := ""
	for _, p := range prefixes {
		if p != "" && len(p) > len(best) && strings.HasPrefix(content, p) {
			best = p
		}
	}
	if best != "" {
		return strings.TrimSpace(content[len(best):]), true
	}
	if botID != "" {
		for _, m := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
			if strings.HasPrefix(content, m) {
				return strings.TrimSpace(content[len(m):]), true
			}
		}
	}
	return "", false
}

// interactionArgs aplana las opciones de un slash: subcomando + args por nombre.
func interactionArgs(opts []*discordgo.ApplicationCommandInteractionDataOption) (string, map[string]string) {
	args := map[string]string{}
	sub := ""
	for _, o := range opts {
		switch o.Type {
		case discordgo.ApplicationCommandOptionSubCommand:
			sub = o.Name
			for _, so := range o.Options {
				args[so.Name] = optionValue(so)
			}
		default:
			args[o.Name] = optionValue(o)
		}
	}
	return sub, args
}

// optionValue pasa a string el valor crudo (los ids de user/canal/rol ya vienen como string).
func optionValue(o *discordgo.ApplicationCommandInteractionDataOption) string {
	switch v := o.Value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	}
	return fmt.Sprint(o.Value)
}

func userMention(id string) string    { return "<@" + id + ">" }
func channelMention(id string) string { return "<#" + id + ">" }
func roleMention(id string) string    { return "<@&" + id + ">" }

func onOff(b bool) string {
	if b {
		return "✅ on"
	}
	return "❌ off"
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
