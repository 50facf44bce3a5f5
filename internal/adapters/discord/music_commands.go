package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jose-valero/alpine-bot/internal/app/music"
	"github.com/jose-valero/alpine-bot/internal/domain"
)

const defaultShift = 10 * time.Second

// session devuelve la sesión de la guild validando canal de voz y de texto.
func (r *Router) session(c *Ctx) (*music.Session, error) {
	s, ok := r.music.Get(c.GuildID)
	if !ok {
		return nil, domain.ErrNoSession
	}
	if err := s.Authorize(r.voice.ChannelOf(c.GuildID, c.UserID), c.ChannelID); err != nil {
		return nil, err
	}
	return s, nil
}

// djSession es session + DJ o moderador.
func (r *Router) djSession(c *Ctx) (*music.Session, error) {
	s, err := r.session(c)
	if err != nil {
		return nil, err
	}
	if !s.IsPrivileged(r.member(c)) {
		return nil, errNotPrivileged
	}
	return s, nil
}

// connect trae la sesión existente (validada) o entra al canal de voz del autor.
func (r *Router) connect(ctx context.Context, c *Ctx) (*music.Session, bool, error) {
	vc := r.voice.ChannelOf(c.GuildID, c.UserID)
	if vc == "" {
		return nil, false, domain.ErrNotInVoice
	}
	if s, ok := r.music.Get(c.GuildID); ok {
		if err := s.Authorize(vc, c.ChannelID); err != nil {
			return nil, false, err
		}
		return s, false, nil
	}
	return r.music.Connect(ctx, c.GuildID, vc, c.ChannelID, r.member(c))
}

func (r *Router) cmdConnect(ctx context.Context, c *Ctx) error {
	s, created, err := r.connect(ctx, c)
	if err != nil {
		return err
	}
	if !created {
		c.Reply("Ya estoy en " + channelMention(s.VoiceChannelID()) + ".")
		return nil
	}
	c.Reply(fmt.Sprintf("🔊 Conectado a %s. DJ: %s", channelMention(s.VoiceChannelID()), userMention(s.DJ())))
	return nil
}

func (r *Router) cmdPlay(ctx context.Context, c *Ctx) error {
	query := c.Str("query")
	if query == "" {
		return usage("Decime qué buscar.")
	}
	next, _ := c.Bool("next")

	s, created, err := r.connect(ctx, c)
	if err != nil {
		return err
	}
	if next && !s.IsPrivileged(r.member(c)) {
		return errNotPrivileged
	}
	res, err := s.Play(ctx, query, c.UserID, next)
	if err != nil {
		if created && s.State() == music.StateIdle {
			// entramos sólo por este play; sin nada que tocar no nos quedamos
			_ = r.music.Disconnect(ctx, c.GuildID)
		}
		return err
	}
	c.Reply(playText(res))
	return nil
}

func playText(res music.PlayResult) string {
	switch {
	case res.Playlist != "":
		txt := fmt.Sprintf("📃 Playlist **%s**: %d tracks encolados", escapeMarkdown(res.Playlist), len(res.Tracks))
		if res.Skipped > 0 {
			txt += fmt.Sprintf(" (%d repetidos salteados)", res.Skipped)
		}
		return txt + "."
	case len(res.Tracks) == 0:
		return "🔎 No entró nada."
	case res.Started:
		return "▶️ Sonando " + trackLine(res.Tracks[0]) + "."
	}
	return fmt.Sprintf("➕ %s en la cola (#%d).", trackLine(res.Tracks[0]), res.Position)
}

var voteDone = map[music.Action]string{
	music.ActionPause:   "⏸️ Pausado.",
	music.ActionResume:  "▶️ Reanudado.",
	music.ActionSkip:    "⏭️ Salteado.",
	music.ActionShuffle: "🔀 Cola mezclada.",
	music.ActionStop:    "⏹️ Cortado.",
}

var voteVerb = map[music.Action]string{
	music.ActionPause:   "pausar",
	music.ActionResume:  "reanudar",
	music.ActionSkip:    "saltear",
	music.ActionShuffle: "mezclar",
	music.ActionStop:    "cortar",
}

// voteHandler: pause/resume/skip/shuffle/stop pasan todos por el voto.
func (r *Router) voteHandler(a music.Action) CommandHandler {
	return func(ctx context.Context, c *Ctx) error {
		s, err := r.session(c)
		if err != nil {
			return err
		}
		res, err := s.Vote(ctx, a, r.member(c))
		if err != nil {
			return err
		}
		c.Reply(voteText(res))
		return nil
	}
}

func voteText(res music.VoteResult) string {
	if res.Executed {
		return voteDone[res.Action]
	}
	return fmt.Sprintf("🗳️ Voto para %s: %d/%d", voteVerb[res.Action], res.Votes, res.Required)
}

func (r *Router) cmdDisconnect(ctx context.Context, c *Ctx) error {
	if _, err := r.djSession(c); err != nil {
		return err
	}
	if err := r.music.Disconnect(ctx, c.GuildID); err != nil {
		return err
	}
	c.Reply("👋 Desconectado.")
	return nil
}

// queue y nowplaying son de lectura: no piden estar en el canal.
func (r *Router) cmdQueue(ctx context.Context, c *Ctx) error {
	s, ok := r.music.Get(c.GuildID)
	if !ok {
		return domain.ErrNoSession
	}
	page, _ := c.Int("page")
	e, _ := queueEmbed(s.Snapshot(), page, r.colorFor(c.UserID))
	c.Reply("", e)
	return nil
}

func (r *Router) cmdNowPlaying(ctx context.Context, c *Ctx) error {
	s, ok := r.music.Get(c.GuildID)
	if !ok {
		return domain.ErrNoSession
	}
	t, ok := s.Current()
	if !ok {
		return domain.ErrNotPlaying
	}
	c.Reply("", nowPlayingEmbed(t, s.Position(), r.colorFor(c.UserID)))
	return nil
}

func (r *Router) cmdVolume(ctx context.Context, c *Ctx) error {
	v, ok := c.Int("level")
	if !ok {
		s, err := r.session(c)
		if err != nil {
			return err
		}
		c.Reply(fmt.Sprintf("🔊 Volumen: %d%%", s.Volume()))
		return nil
	}
	s, err := r.djSession(c)
	if err != nil {
		return err
	}
	if err := s.SetVolume(ctx, v); err != nil {
		return err
	}
	c.Reply(fmt.Sprintf("🔊 Volumen en %d%%.", v))
	return nil
}

func (r *Router) cmdLoop(ctx context.Context, c *Ctx) error {
	s, err := r.djSession(c)
	if err != nil {
		return err
	}
	on, err := s.ToggleLoop()
	if err != nil {
		return err
	}
	if on {
		c.Reply("🔂 Repitiendo el track actual.")
	} else {
		c.Reply("➡️ Loop apagado.")
	}
	return nil
}

func (r *Router) cmdSeek(ctx context.Context, c *Ctx) error {
	pos, err := parseTimestamp(c.Str("time"))
	if err != nil {
		return err
	}
	s, err := r.djSession(c)
	if err != nil {
		return err
	}
	at, err := s.Seek(ctx, pos)
	if err != nil {
		return err
	}
	c.Reply("⏩ En " + fmtDuration(at) + ".")
	return nil
}

// cmdShift es fastforward (dir 1) y rewind (dir -1).
func (r *Router) cmdShift(dir int) CommandHandler {
	return func(ctx context.Context, c *Ctx) error {
		d := defaultShift
		if n, ok := c.Int("seconds"); ok {
			if n <= 0 {
				return usage("Los segundos tienen que ser positivos.")
			}
			d = time.Duration(n) * time.Second
		}
		s, err := r.djSession(c)
		if err != nil {
			return err
		}
		var at time.Duration
		if dir > 0 {
			at, err = s.FastForward(ctx, d)
		} else {
			at, err = s.Rewind(ctx, d)
		}
		if err != nil {
			return err
		}
		c.Reply("⏱️ En " + fmtDuration(at) + ".")
		return nil
	}
}

func (r *Router) cmdFilter(ctx context.Context, c *Ctx) error {
	s, err := r.djSession(c)
	if err != nil {
		return err
	}
	if c.Sub == "reset" {
		if err := s.ResetFilters(ctx); err != nil {
			return err
		}
		c.Reply("🎛️ Filtros quitados.")
		return nil
	}
	f, err := filterFromArgs(c)
	if err != nil {
		return err
	}
	if _, err := s.SetFilters(ctx, f); err != nil {
		return err
	}
	c.Reply("🎛️ Filtro `" + c.Sub + "` aplicado.")
	return nil
}

// filterFromArgs arma el filtro del subcomando validando rangos.
func filterFromArgs(c *Ctx) (domain.Filters, error) {
	num := func(name string, lo, hi float64) (float64, error) {
		v, ok := c.Float(name)
		if !ok || v < lo || v > hi {
			return 0, usage("`%s` va de %g a %g.", name, lo, hi)
		}
		return v, nil
	}
	var f domain.Filters
	switch c.Sub {
	case "equalizer":
		band, ok := c.Int("band")
		if !ok || band < 0 || band > 14 {
			return f, usage("`band` va de 0 a 14.")
		}
		gain, err := num("gain", -0.25, 1)
		if err != nil {
			return f, err
		}
		f.Equalizer = []domain.EqualizerBand{{Band: band, Gain: gain}}
	case "speed":
		v, err := num("value", 0.25, 3)
		if err != nil {
			return f, err
		}
		f.Timescale = &domain.Timescale{Speed: v, Pitch: 1, Rate: 1}
	case "pitch":
		v, err := num("value", 0.25, 3)
		if err != nil {
			return f, err
		}
		f.Timescale = &domain.Timescale{Speed: 1, Pitch: v, Rate: 1}
	case "tremolo", "vibrato":
		maxFreq := 1000.0
		if c.Sub == "vibrato" {
			maxFreq = 14
		}
		freq, err := num("frequency", 0.01, maxFreq)
		if err != nil {
			return f, err
		}
		depth, err := num("depth", 0.01, 1)
		if err != nil {
			return f, err
		}
		if c.Sub == "tremolo" {
			f.Tremolo = &domain.Tremolo{Frequency: freq, Depth: depth}
		} else {
			f.Vibrato = &domain.Vibrato{Frequency: freq, Depth: depth}
		}
	case "rotation":
		hz, err := num("hz", 0, 10)
		if err != nil {
			return f, err
		}
		f.Rotation = &domain.Rotation{RotationHz: hz}
	case "channelmix":
		mix, ok := channelMixes[strings.ToLower(c.Str("mode"))]
		if !ok {
			return f, usage("`mode` tiene que ser mono, swap, left, right o stereo.")
		}
		f.ChannelMix = &mix
	case "lowpass":
		v, err := num("smoothing", 1, 100)
		if err != nil {
			return f, err
		}
		f.LowPass = &domain.LowPass{Smoothing: v}
	default:
		return f, usage("Filtro desconocido `%s`.", c.Sub)
	}
	return f, nil
}

var channelMixes = map[string]domain.ChannelMix{
	"stereo": {LeftToLeft: 1, RightToRight: 1},
	"mono":   {LeftToLeft: 0.5, LeftToRight: 0.5, RightToLeft: 0.5, RightToRight: 0.5},
	"swap":   {LeftToRight: 1, RightToLeft: 1},
	"left":   {LeftToLeft: 1, RightToLeft: 1},
	"right":  {LeftToRight: 1, RightToRight: 1},
}

func (r *Router) cmdSwapDJ(ctx context.Context, c *Ctx) error {
	target, ok := c.ID("member")
	if !ok {
		return usage("Mencioná al nuevo DJ.")
	}
	s, err := r.djSession(c)
	if err != nil {
		return err
	}
	vc := s.VoiceChannelID()
	if r.voice.ChannelOf(c.GuildID, target) != vc {
		return fmt.Errorf("%w: no está en el canal", domain.ErrInvalidMember)
	}
	if err := s.SwapDJ(r.voice.Member(c.GuildID, vc, target)); err != nil {
		return err
	}
	c.Reply("🎧 Nuevo DJ: " + userMention(target))
	return nil
}

func (r *Router) cmdRemove(ctx context.Context, c *Ctx) error {
	i, ok := c.Int("index")
	if !ok {
		return usage("Pasame la posición en la cola.")
	}
	s, err := r.djSession(c)
	if err != nil {
		return err
	}
	t, err := s.Remove(i - 1)
	if err != nil {
		return err
	}
	c.Reply("🗑️ Quitado " + trackLine(t) + ".")
	return nil
}

func (r *Router) cmdClear(ctx context.Context, c *Ctx) error {
	s, err := r.djSession(c)
	if err != nil {
		return err
	}
	s.Clear()
	c.Reply("🧹 Cola vacía.")
	return nil
}

func (r *Router) cmdAnnounce(ctx context.Context, c *Ctx) error {
	return r.sessionFlag(c, "anunciar tracks", (*music.Session).SetAnnounce)
}

func (r *Router) cmdDuplicates(ctx context.Context, c *Ctx) error {
	return r.sessionFlag(c, "tracks repetidos", (*music.Session).SetAllowDuplicates)
}

func (r *Router) sessionFlag(c *Ctx, label string, set func(*music.Session, bool)) error {
	v, ok := c.Bool("enabled")
	if !ok {
		return usage("Pasá on u off.")
	}
	s, err := r.djSession(c)
	if err != nil {
		return err
	}
	set(s, v)
	c.Reply(fmt.Sprintf("%s: %s", label, onOff(v)))
	return nil
}
