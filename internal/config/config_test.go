package config

import "testing"

func TestNormalizeDefaults(t *testing.T) {
	c := &Config{ConversationID: "conv", RelayURL: "ws://127.0.0.1:8443"}
	if err := c.Normalize(); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if c.PeerID == "" {
		t.Error("PeerID not generated")
	}
	if c.DisplayName == "" {
		t.Error("DisplayName not derived")
	}
	if len(c.STUNServers) == 0 {
		t.Error("STUN servers not defaulted")
	}
}

func TestNormalizeRequiresConversationAndRelay(t *testing.T) {
	if err := (&Config{RelayURL: "ws://x"}).Normalize(); err == nil {
		t.Error("missing conversation id accepted")
	}
	if err := (&Config{ConversationID: "conv"}).Normalize(); err == nil {
		t.Error("missing relay url accepted")
	}
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	c := &Config{
		ConversationID: "conv",
		RelayURL:       "ws://x",
		PeerID:         "ann",
		DisplayName:    "Ann",
		STUNServers:    []string{"stun:example.org:3478"},
	}
	if err := c.Normalize(); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if c.PeerID != "ann" || c.DisplayName != "Ann" || c.STUNServers[0] != "stun:example.org:3478" {
		t.Fatalf("explicit values changed: %+v", c)
	}
}
