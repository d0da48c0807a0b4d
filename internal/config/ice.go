package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// ICE keys read from the plain environment names used by deployments.
var iceEnv = map[string]string{
	"ice.stun_server_1":       "STUN_SERVER_1",
	"ice.stun_server_2":       "STUN_SERVER_2",
	"ice.turn_server":         "TURN_SERVER",
	"ice.turn_port":           "TURN_PORT",
	"ice.turn_username":       "TURN_USERNAME",
	"ice.turn_password":       "TURN_PASSWORD",
	"ice.candidate_pool_size": "ICE_CANDIDATE_POOL_SIZE",

	"ice.require_turn_credentials": "ICE_REQUIRE_TURN_CREDENTIALS",
}

type ICEConfig struct {
	StunServer1       string `mapstructure:"stun_server_1"`
	StunServer2       string `mapstructure:"stun_server_2"`
	TurnServer        string `mapstructure:"turn_server"`
	TurnPort          int    `mapstructure:"turn_port"`
	TurnUsername      string `mapstructure:"turn_username"`
	TurnPassword      string `mapstructure:"turn_password"`
	CandidatePoolSize int    `mapstructure:"candidate_pool_size"`

	// RequireTurnCredentials refuses a TURN server configured without
	// username and password.
	RequireTurnCredentials bool `mapstructure:"require_turn_credentials"`
}

// Servers builds the ICE server list handed to browsers: one STUN entry, plus
// TURN over udp and tcp when a TURN host is configured. TURN without
// credentials is still served, as some relays accept anonymous allocations.
func (c ICEConfig) Servers() ([]webrtc.ICEServer, error) {
	var servers []webrtc.ICEServer

	stun := nonEmpty(c.StunServer1, c.StunServer2)
	if len(stun) > 0 {
		server := webrtc.ICEServer{URLs: stun}
		if err := validateICEServer(server, false); err != nil {
			return nil, fmt.Errorf("stun: %w", err)
		}
		servers = append(servers, server)
	}

	host := strings.TrimSpace(c.TurnServer)
	if host == "" {
		return servers, nil
	}
	username := strings.TrimSpace(c.TurnUsername)
	if username == "" || strings.TrimSpace(c.TurnPassword) == "" {
		log.Warn().Str("module", "config").Str("turn", host).Msg("TURN server without credentials")
	}
	for _, transport := range []string{"udp", "tcp"} {
		server := webrtc.ICEServer{
			URLs:     []string{fmt.Sprintf("turn:%s:%d?transport=%s", host, c.TurnPort, transport)},
			Username: username,
		}
		if c.TurnPassword != "" {
			server.Credential = c.TurnPassword
		}
		if err := validateICEServer(server, c.RequireTurnCredentials); err != nil {
			return nil, fmt.Errorf("turn %s: %w", transport, err)
		}
		servers = append(servers, server)
	}
	return servers, nil
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func validateICEServer(server webrtc.ICEServer, requireTurnCreds bool) error {
	if len(server.URLs) == 0 {
		return errors.New("missing urls")
	}

	hasTurn := false
	for _, url := range server.URLs {
		if !isAllowedICEScheme(url) {
			return fmt.Errorf("unsupported url scheme: %q", url)
		}
		if strings.HasPrefix(url, "turn:") || strings.HasPrefix(url, "turns:") {
			hasTurn = true
		}
	}

	if hasTurn && requireTurnCreds {
		if server.Username == "" {
			return errors.New("turn urls require username")
		}
		cred, ok := server.Credential.(string)
		if !ok || strings.TrimSpace(cred) == "" {
			return errors.New("turn urls require credential")
		}
	}
	return nil
}

func isAllowedICEScheme(url string) bool {
	for _, scheme := range []string{"stun:", "stuns:", "turn:", "turns:"} {
		if strings.HasPrefix(url, scheme) {
			return true
		}
	}
	return false
}
