// Package config holds the CLI configuration types.
package config

import (
	"errors"

	"github.com/google/uuid"
)

// DefaultSTUNServers are the public STUN endpoints used when none are
// configured. STUN only — no TURN relay, so two symmetric NATs may fail to
// connect.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// Config stores all parameters for one client run.
type Config struct {
	PeerID         string   // stable identity within the conversation
	DisplayName    string   // shown next to chat messages
	ConversationID string   // the shared channel to join
	RelayURL       string   // relay WebSocket base URL, e.g. ws://host:8443
	STUNServers    []string
	Video          bool // offer video by default when calling
}

// Normalize fills derivable defaults and validates the rest. A missing
// PeerID gets a random one; the identity then lasts one run.
func (c *Config) Normalize() error {
	if c.ConversationID == "" {
		return errors.New("config: conversation id is required")
	}
	if c.RelayURL == "" {
		return errors.New("config: relay url is required")
	}
	if c.PeerID == "" {
		c.PeerID = uuid.NewString()
	}
	if c.DisplayName == "" {
		c.DisplayName = c.PeerID
		if len(c.DisplayName) > 8 {
			c.DisplayName = c.DisplayName[:8]
		}
	}
	if len(c.STUNServers) == 0 {
		c.STUNServers = DefaultSTUNServers
	}
	return nil
}
