package audionode

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// voiceState junta las dos mitades del handshake de voz de Discord.
type voiceState struct {
	sessionID string
	token     string
	endpoint  string
}

func (v *voiceState) complete() bool {
	return v.sessionID != "" && v.token != "" && v.endpoint != ""
}

// VoiceStateUpdate recibe el session id de voz del bot. Vacío = salió del canal.
func (c *Client) VoiceStateUpdate(ctx context.Context, guildID, sessionID string) error {
	if sessionID == "" {
		c.forgetVoice(guildID)
		return nil
	}
	return c.updateVoice(ctx, guildID, func(v *voiceState) { v.sessionID = sessionID })
}

// VoiceServerUpdate recibe token y endpoint. Discord puede mandar un endpoint
// nuevo en cualquier momento (cambio de región) y se reenvía.
func (c *Client) VoiceServerUpdate(ctx context.Context, guildID, token, endpoint string) error {
	return c.updateVoice(ctx, guildID, func(v *voiceState) {
		v.token = token
		v.endpoint = endpoint
	})
}

func (c *Client) updateVoice(ctx context.Context, guildID string, apply func(*voiceState)) error {
	c.mu.Lock()
	v, ok := c.voice[guildID]
	if !ok {
		v = &voiceState{}
		c.voice[guildID] = v
	}
	apply(v)
	snap := *v
	ready := c.sessionID != ""
	c.mu.Unlock()

	if !snap.complete() || !ready {
		return nil
	}
	return c.sendVoice(ctx, guildID, snap)
}

func (c *Client) sendVoice(ctx context.Context, guildID string, v voiceState) error {
	return c.patchPlayer(ctx, guildID, playerPatch{Voice: &voiceDTO{
		Token:     v.token,
		Endpoint:  v.endpoint,
		SessionID: v.sessionID,
	}}, nil)
}

func (c *Client) forgetVoice(guildID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.voice, guildID)
}

// resendVoice manda los handshakes completos después de un ready sin resume.
func (c *Client) resendVoice() {
	c.mu.RLock()
	pending := make(map[string]voiceState, len(c.voice))
	for g, v := range c.voice {
		if v.complete() {
			pending[g] = *v
		}
	}
	c.mu.RUnlock()

	for g, v := range pending {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := c.sendVoice(ctx, g, v); err != nil {
			c.log.Warn("reenviar voice", zap.String("guild", g), zap.Error(err))
		}
		cancel()
	}
}
