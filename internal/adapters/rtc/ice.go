// Package rtc builds the WebRTC configuration handed to browsers. The
// server never terminates media itself; peers connect directly.
package rtc

import (
	"fmt"
	"strings"

	"github.com/dkeye/Hangout/internal/config"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// NewWebRTCConfig converts configured ICE servers and checks them the way a
// peer connection would. An empty list yields DefaultWebRTCConfig.
func NewWebRTCConfig(servers []config.ICEServerConfig) (webrtc.Configuration, error) {
	if len(servers) == 0 {
		return DefaultWebRTCConfig(), nil
	}
	cfg := webrtc.Configuration{ICEServers: make([]webrtc.ICEServer, 0, len(servers))}
	for i, s := range servers {
		if len(s.URLs) == 0 {
			return webrtc.Configuration{}, fmt.Errorf("ice_servers[%d]: no urls", i)
		}
		srv := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" || s.Credential != "" {
			srv.Username = s.Username
			srv.Credential = s.Credential
			srv.CredentialType = webrtc.ICECredentialTypePassword
		}
		for _, u := range s.URLs {
			if isTURN(u) && (srv.Username == "" || s.Credential == "") {
				return webrtc.Configuration{}, fmt.Errorf("ice_servers[%d] %s: %w", i, u, webrtc.ErrNoTurnCredentials)
			}
		}
		cfg.ICEServers = append(cfg.ICEServers, srv)
	}

	// Building a peer connection parses every URL; nothing is gathered
	// until a description is set, so this stays offline.
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return webrtc.Configuration{}, fmt.Errorf("ice servers: %w", err)
	}
	if err := pc.Close(); err != nil {
		log.Warn().Err(err).Str("module", "rtc").Msg("close probe connection")
	}
	log.Info().Str("module", "rtc").Int("servers", len(cfg.ICEServers)).Msg("ice servers ready")
	return cfg, nil
}

func isTURN(u string) bool {
	return strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:")
}
