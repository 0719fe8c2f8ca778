// Lumora — chat client CLI entry point.
//
// This tool joins a shared conversation through a relay daemon (lumorad)
// and layers P2P audio/video calls on top of the same message channel the
// chat flows through. Media goes peer to peer over WebRTC; only chat and
// signaling touch the relay.
//
// It can be launched non-interactively via CLI flags (-relay, -conv, -name)
// or interactively (missing flags are prompted for).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"

	"github.com/lumora-app/lumora/internal/app"
	"github.com/lumora-app/lumora/internal/config"
	"github.com/lumora-app/lumora/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// CLI flags.
	relayFlag := flag.String("relay", "", "Relay URL, e.g. ws://example.org:8443")
	convFlag := flag.String("conv", "", "Conversation id to join")
	nameFlag := flag.String("name", "", "Display name")
	peerFlag := flag.String("peer", "", "Stable peer id (random per run when omitted)")
	videoFlag := flag.Bool("video", false, "Offer video when starting calls with /call")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Lumora — v%s", version))
	pterm.Println()

	cfg := &config.Config{
		RelayURL:       *relayFlag,
		ConversationID: *convFlag,
		DisplayName:    *nameFlag,
		PeerID:         *peerFlag,
		Video:          *videoFlag,
	}

	// Missing flags → interactive prompts.
	if cfg.RelayURL == "" {
		cfg.RelayURL = askRelayURL()
	} else {
		normalized, err := normalizeRelayURL(cfg.RelayURL)
		if err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		cfg.RelayURL = normalized
	}
	if cfg.ConversationID == "" {
		cfg.ConversationID = askConversation()
	}

	if err := cfg.Normalize(); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		util.LogError("%v", err)
		os.Exit(1)
	}

	util.LogInfo("left conversation %s", cfg.ConversationID)
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// normalizeRelayURL validates a raw relay URL and strips it down to
// scheme://host, which is what the relay client expects.
func normalizeRelayURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid relay URL: %s", raw)
	}
	scheme := "wss"
	if u.Scheme == "ws" || u.Scheme == "wss" {
		scheme = u.Scheme
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host), nil
}

// askRelayURL prompts the user for a valid relay URL until one is entered.
func askRelayURL() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Relay URL (e.g. ws://127.0.0.1:8443)").
			Show()

		relayURL, err := normalizeRelayURL(raw)
		if err == nil {
			pterm.Println()
			return relayURL
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter a valid host or URL")
	}
}

// askConversation prompts for a non-empty conversation id.
func askConversation() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Conversation id").
			Show()

		if conv := strings.TrimSpace(raw); conv != "" {
			pterm.Println()
			return conv
		}

		util.LogWarning("conversation id must not be empty")
		pterm.Println()
	}
}
