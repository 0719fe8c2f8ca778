// Package app contains the top-level orchestration for the chat client:
// joining the conversation, printing chat, and driving calls from simple
// slash commands.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"

	"github.com/lumora-app/lumora/internal/call"
	"github.com/lumora-app/lumora/internal/chat"
	"github.com/lumora-app/lumora/internal/config"
	"github.com/lumora-app/lumora/internal/media"
	"github.com/lumora-app/lumora/internal/relay"
	"github.com/lumora-app/lumora/internal/store"
	"github.com/lumora-app/lumora/internal/util"
)

// Run orchestrates the full client lifecycle:
//  1. Connect to the relay and join the conversation
//  2. Print history and start the live chat feed
//  3. Watch the conversation for incoming calls
//  4. Read commands and chat lines from stdin until EOF or Ctrl+C
func Run(ctx context.Context, cfg *config.Config) error {
	// ── 1. Relay connection ────────────────────────────────────────────
	st := relay.NewRemoteStore(cfg.RelayURL)
	defer st.Close()

	chatMgr := chat.NewManager(st, cfg.PeerID)
	callMgr := call.NewManager(st, cfg.PeerID,
		call.NewMediaFactory(media.Config{STUNServers: cfg.STUNServers}))
	defer callMgr.Close()

	// ── 2. Call event wiring ───────────────────────────────────────────
	callMgr.OnIncoming(func(s *call.Session) {
		kind := "audio"
		if s.Video() {
			kind = "video"
		}
		pterm.Println()
		util.LogInfo("incoming %s call from %s — type /accept or /reject", kind, s.RemotePeerID())
	})
	callMgr.OnStateChange(func(s *call.Session, state call.State) {
		switch state {
		case call.StateAwaitingAnswer:
			util.LogInfo("call offer sent, waiting for an answer")
		case call.StateConnected:
			util.LogSuccess("call connected with %s", s.RemotePeerID())
		case call.StateEnded:
			util.LogInfo("call ended")
		}
	})
	callMgr.OnRemoteStream(func(_ *call.Session, rs *media.RemoteStream) {
		util.LogInfo("receiving remote media (%d track(s) so far)", len(rs.Tracks()))
	})
	callMgr.Watch(cfg.ConversationID)

	// ── 3. Chat history + live feed ────────────────────────────────────
	history, err := chatMgr.History(ctx, cfg.ConversationID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	for _, msg := range history {
		printMessage(cfg, msg)
	}

	feed, cancelFeed := chatMgr.Watch(cfg.ConversationID)
	defer cancelFeed()
	go func() {
		for msg := range feed {
			if msg.SenderID == cfg.PeerID {
				continue // printed locally on send
			}
			printMessage(cfg, msg)
		}
	}()

	pterm.Println()
	util.LogInfo("joined conversation %s as %s — /help for commands", cfg.ConversationID, cfg.DisplayName)

	// ── 4. Input loop ──────────────────────────────────────────────────
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, cfg, chatMgr, callMgr, line); quit {
				return nil
			}
		}
	}
}

// handleLine executes one stdin line: a slash command or a chat message.
// Returns true when the user asked to quit.
func handleLine(ctx context.Context, cfg *config.Config, chatMgr *chat.Manager, callMgr *call.Manager, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		msg, err := chatMgr.Send(ctx, cfg.ConversationID, line)
		if err != nil {
			util.LogError("send message: %v", err)
			return false
		}
		printMessage(cfg, msg)
		return false
	}

	cmd, _, _ := strings.Cut(line, " ")
	switch cmd {
	case "/help":
		printHelp()

	case "/call", "/video":
		video := cmd == "/video" || cfg.Video
		// Device acquisition blocks; keep the input loop responsive.
		go func() {
			_, err := callMgr.Originate(ctx, cfg.ConversationID, "", video)
			switch {
			case errors.Is(err, call.ErrCallInProgress):
				util.LogWarning("a call is already active")
			case errors.Is(err, media.ErrDeviceUnavailable):
				util.LogError("camera/microphone unavailable: %v", err)
			case err != nil:
				util.LogError("start call: %v", err)
			}
		}()

	case "/accept":
		s := callMgr.Active(cfg.ConversationID)
		if s == nil || s.State() != call.StateRinging {
			util.LogWarning("no ringing call to accept")
			return false
		}
		go func() {
			if err := s.Accept(ctx); err != nil {
				util.LogError("accept call: %v", err)
			}
		}()

	case "/reject":
		s := callMgr.Active(cfg.ConversationID)
		if s == nil || s.State() != call.StateRinging {
			util.LogWarning("no ringing call to reject")
			return false
		}
		s.Reject(ctx)

	case "/hangup":
		s := callMgr.Active(cfg.ConversationID)
		if s == nil {
			util.LogWarning("no active call")
			return false
		}
		s.Hangup(ctx)

	case "/mute":
		s := callMgr.Active(cfg.ConversationID)
		if s == nil {
			util.LogWarning("no active call")
			return false
		}
		if s.ToggleAudio() {
			util.LogInfo("microphone on")
		} else {
			util.LogInfo("microphone off")
		}

	case "/camera":
		s := callMgr.Active(cfg.ConversationID)
		if s == nil {
			util.LogWarning("no active call")
			return false
		}
		if s.ToggleVideo() {
			util.LogInfo("camera on")
		} else {
			util.LogInfo("camera off")
		}

	case "/quit":
		return true

	default:
		util.LogWarning("unknown command %s — /help for the list", cmd)
	}
	return false
}

func printMessage(cfg *config.Config, msg store.Message) {
	name := msg.SenderID
	if msg.SenderID == cfg.PeerID {
		name = cfg.DisplayName
	} else if len(name) > 8 {
		name = name[:8]
	}
	pterm.Printf("%s %s: %s\n", msg.CreatedAt.Local().Format("15:04"), name, msg.Body)
}

func printHelp() {
	pterm.Println("  /call     start an audio call")
	pterm.Println("  /video    start a video call")
	pterm.Println("  /accept   answer the ringing call")
	pterm.Println("  /reject   decline the ringing call")
	pterm.Println("  /hangup   end the active call")
	pterm.Println("  /mute     toggle microphone")
	pterm.Println("  /camera   toggle camera")
	pterm.Println("  /quit     leave")
	pterm.Println("  anything else is sent as a chat message")
}
