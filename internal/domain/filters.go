package domain

// Filters sigue el objeto "filters" de Lavalink v4. Los punteros nil no se
// envían, así cada subcomando toca sólo su filtro.
type Filters struct {
	Equalizer  []EqualizerBand `json:"equalizer,omitempty"`
	Timescale  *Timescale      `json:"timescale,omitempty"`
	Tremolo    *Tremolo        `json:"tremolo,omitempty"`
	Vibrato    *Vibrato        `json:"vibrato,omitempty"`
	Rotation   *Rotation       `json:"rotation,omitempty"`
	ChannelMix *ChannelMix     `json:"channelMix,omitempty"`
	LowPass    *LowPass        `json:"lowPass,omitempty"`
}

type EqualizerBand struct {
	Band int     `json:"band"` // 0..14
	Gain float64 `json:"gain"` // -0.25..1.0
}

type Timescale struct {
	Speed float64 `json:"speed"`
	Pitch float64 `json:"pitch"`
	Rate  float64 `json:"rate"`
}

type Tremolo struct {
	Frequency float64 `json:"frequency"`
	Depth     float64 `json:"depth"`
}

type Vibrato struct {
	Frequency float64 `json:"frequency"`
	Depth     float64 `json:"depth"`
}

type Rotation struct {
	RotationHz float64 `json:"rotationHz"`
}

type ChannelMix struct {
	LeftToLeft   float64 `json:"leftToLeft"`
	LeftToRight  float64 `json:"leftToRight"`
	RightToLeft  float64 `json:"rightToLeft"`
	RightToRight float64 `json:"rightToRight"`
}

type LowPass struct {
	Smoothing float64 `json:"smoothing"`
}

// Merge aplica encima de f los filtros no-nil de o.
func (f Filters) Merge(o Filters) Filters {
	if o.Equalizer != nil {
		f.Equalizer = append([]EqualizerBand(nil), o.Equalizer...)
	}
	if o.Timescale != nil {
		f.Timescale = o.Timescale
	}
	if o.Tremolo != nil {
		f.Tremolo = o.Tremolo
	}
	if o.Vibrato != nil {
		f.Vibrato = o.Vibrato
	}
	if o.Rotation != nil {
		f.Rotation = o.Rotation
	}
	if o.ChannelMix != nil {
		f.ChannelMix = o.ChannelMix
	}
	if o.LowPass != nil {
		f.LowPass = o.LowPass
	}
	return f
}
