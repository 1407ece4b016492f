package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/relayproj/relay/internal/appdir"
	"github.com/relayproj/relay/internal/fileutil"
	"github.com/relayproj/relay/internal/logging"
	"github.com/relayproj/relay/internal/session"
	"github.com/relayproj/relay/internal/store"
	"github.com/relayproj/relay/internal/timeline"
	"github.com/relayproj/relay/internal/transport"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start or resume an interactive conversation",
	Long: `Chat opens an interactive prompt against the configured workflow
server. If a previous run is still active its stream is resumed and the
conversation continues where it left off.

Commands inside the prompt:
  /stop   stop listening to the current response
  /end    terminate the remote session
  /quit   save the transcript and exit`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// chatPrinter tracks how much of the reconciled timeline has already
// been written to the terminal so each run end only prints the suffix.
type chatPrinter struct {
	mu      sync.Mutex
	printed int
}

func (p *chatPrinter) flush(msgs []timeline.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ; p.printed < len(msgs); p.printed++ {
		m := msgs[p.printed]
		text := strings.TrimSpace(m.Text())
		if text == "" {
			continue
		}
		switch m.Role {
		case timeline.RoleUser:
			fmt.Printf("you: %s\n", text)
		default:
			fmt.Printf("relay: %s\n", text)
		}
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	log := logging.CLI()
	ctx := cmd.Context()

	runPath, err := appdir.RunFile()
	if err != nil {
		return err
	}
	runs := store.NewFileStore(runPath)

	// Notice when another relay instance replaces or clears the run.
	watcher, err := store.NewWatcher(runs, func() {
		if id, ok := runs.Get(); ok {
			log.Info("run file changed externally", "run_id", id)
		} else {
			log.Info("run file cleared externally")
		}
	})
	if err != nil {
		log.Warn("could not watch run file", "error", err)
	} else {
		defer watcher.Close()
	}

	var opts []transport.Option
	if cfg.Server.APIPrefix != "" {
		opts = append(opts, transport.WithAPIPrefix(cfg.Server.APIPrefix))
	}
	if cfg.Server.TimeoutSeconds > 0 {
		opts = append(opts, transport.WithTimeout(time.Duration(cfg.Server.TimeoutSeconds)*time.Second))
	}
	adapter := transport.New(cfg.Server.URL, opts...)

	printer := &chatPrinter{}
	runEnded := make(chan struct{}, 1)
	mgr := session.New(runs, adapter, session.Callbacks{
		OnRunEnded: func() {
			select {
			case runEnded <- struct{}{}:
			default:
			}
		},
		OnStatusChanged: func(s session.Status) {
			if s == session.StatusError {
				select {
				case runEnded <- struct{}{}:
				default:
				}
			}
		},
	})

	if mgr.NeedsResume() {
		fmt.Println("resuming previous run...")
		if err := mgr.Resume(ctx); err != nil {
			if errors.Is(err, session.ErrNoActiveRun) {
				fmt.Println("previous run is gone; starting fresh")
			} else {
				log.Warn("resume failed", "error", err)
				fmt.Fprintf(os.Stderr, "could not resume: %v\n", err)
			}
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "/quit":
			return saveTranscript(mgr)
		case "/stop":
			mgr.Stop()
			fmt.Println("stopped")
		case "/end":
			if err := mgr.EndSession(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			} else {
				fmt.Println("session ended")
			}
		default:
			if err := sendAndWait(ctx, mgr, printer, runEnded, line); err != nil {
				return err
			}
		}
		fmt.Print("> ")
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return saveTranscript(mgr)
}

func sendAndWait(ctx context.Context, mgr *session.Manager, printer *chatPrinter, runEnded <-chan struct{}, text string) error {
	if err := mgr.SendMessage(ctx, text); err != nil {
		var rejected *session.FollowUpRejectedError
		if errors.As(err, &rejected) {
			fmt.Fprintf(os.Stderr, "rejected: %s\n", rejected.Details)
			return nil
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return nil
	}
	select {
	case <-runEnded:
	case <-ctx.Done():
		return ctx.Err()
	}
	if mgr.Status() == session.StatusError {
		if err := mgr.LastError(); err != nil {
			fmt.Fprintf(os.Stderr, "run error: %v\n", err)
		}
	}
	printer.flush(mgr.Timeline())
	return nil
}

func saveTranscript(mgr *session.Manager) error {
	msgs := mgr.Timeline()
	if len(msgs) == 0 {
		return nil
	}
	path, err := appdir.TranscriptFile()
	if err != nil {
		return err
	}
	if err := fileutil.WriteJSONAtomic(path, msgs, 0o644); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	fmt.Printf("transcript saved to %s\n", path)
	return nil
}
