package rtc

import (
	"errors"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Hangout/internal/config"
)

func TestNewWebRTCConfig(t *testing.T) {
	t.Run("empty uses default", func(t *testing.T) {
		cfg, err := NewWebRTCConfig(nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultWebRTCConfig(), cfg)
	})

	t.Run("stun and turn", func(t *testing.T) {
		cfg, err := NewWebRTCConfig([]config.ICEServerConfig{
			{URLs: []string{"stun:stun.example.com:3478"}},
			{URLs: []string{"turn:turn.example.com:3478?transport=udp"}, Username: "user", Credential: "pass"},
		})
		require.NoError(t, err)
		require.Len(t, cfg.ICEServers, 2)
		assert.Equal(t, "user", cfg.ICEServers[1].Username)
		assert.Equal(t, "pass", cfg.ICEServers[1].Credential)
		assert.Equal(t, webrtc.ICECredentialTypePassword, cfg.ICEServers[1].CredentialType)
	})

	t.Run("turn without credentials", func(t *testing.T) {
		_, err := NewWebRTCConfig([]config.ICEServerConfig{
			{URLs: []string{"turn:turn.example.com:3478"}},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, webrtc.ErrNoTurnCredentials))
	})

	t.Run("missing urls", func(t *testing.T) {
		_, err := NewWebRTCConfig([]config.ICEServerConfig{{}})
		assert.Error(t, err)
	})

	t.Run("malformed url", func(t *testing.T) {
		_, err := NewWebRTCConfig([]config.ICEServerConfig{
			{URLs: []string{"http://not-ice.example.com"}},
		})
		assert.Error(t, err)
	})
}
