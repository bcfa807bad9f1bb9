package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/memvra/dejavu/internal/engine"
)

func newWatchCmd() *cobra.Command {
	var (
		debounceMs int
		fromStart  bool
		sessionID  string
	)

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Follow a transcript file and answer each appended line",
		Long: `Start a long-running watcher that follows a transcript file. Every complete
line appended to the file is added to the engine and its response printed.

Writes are debounced so that a burst of appends is processed in one pass.
Truncating the file restarts from the beginning.

Press Ctrl-C to stop.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("watch: %w", err)
			}

			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer watcher.Close()

			// Watch the directory so editors that replace the file are seen.
			if err := watcher.Add(filepath.Dir(path)); err != nil {
				return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
			}

			t := &tailer{path: path}
			if !fromStart {
				if err := t.skipToEnd(); err != nil {
					return err
				}
			}

			debounce := time.Duration(debounceMs) * time.Millisecond
			fmt.Printf("Watching %s (debounce %s). Press Ctrl-C to stop.\n", path, debounce)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			timer := time.NewTimer(debounce)
			if !fromStart {
				timer.Stop()
			}

			for {
				select {
				case <-ctx.Done():
					fmt.Println("\nStopping watcher.")
					return nil

				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if filepath.Clean(event.Name) != path {
						continue
					}
					if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
						timer.Reset(debounce)
					}

				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					fmt.Fprintf(os.Stderr, "  watch error: %v\n", err)

				case <-timer.C:
					lines, err := t.readNew()
					if err != nil {
						fmt.Fprintf(os.Stderr, "  read error: %v\n", err)
						continue
					}
					processLines(ctx, s.engine, os.Stdout, lines, sessionID)
				}
			}
		},
	}

	cmd.Flags().IntVar(&debounceMs, "debounce", 300, "debounce interval in milliseconds")
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "process lines already in the file")
	cmd.Flags().StringVar(&sessionID, "session", "", "session ID recorded with each message")
	return cmd
}

// tailer reads complete lines appended to a file since the last read.
type tailer struct {
	path    string
	offset  int64
	partial []byte
}

func (t *tailer) skipToEnd() error {
	info, err := os.Stat(t.path)
	if err != nil {
		return err
	}
	t.offset = info.Size()
	return nil
}

// readNew returns the complete, non-blank lines written since the last
// call. A trailing line without a newline is held until it is finished.
// A file shorter than the last offset is read again from the start.
func (t *tailer) readNew() ([]string, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < t.offset {
		t.offset = 0
		t.partial = nil
	}
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	t.offset += int64(len(data))

	data = append(t.partial, data...)
	cut := bytes.LastIndexByte(data, '\n')
	if cut < 0 {
		t.partial = data
		return nil, nil
	}
	t.partial = append([]byte(nil), data[cut+1:]...)

	var lines []string
	for _, line := range strings.Split(string(data[:cut]), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// processLines adds each line and prints a timestamped response.
func processLines(ctx context.Context, e *engine.Engine, out io.Writer, lines []string, sessionID string) {
	for _, line := range lines {
		resp, err := e.AddMessageWithSession(ctx, line, sessionID)
		ts := time.Now().Format("15:04:05")
		if err != nil && resp.Tier == "" {
			fmt.Fprintf(out, "[%s] error: %v\n", ts, err)
			continue
		}
		fmt.Fprintf(out, "[%s] %s\n", ts, truncateLabel(line, 60))
		printResponse(out, resp)
		if err != nil {
			fmt.Fprintf(out, "[%s] warning: %v\n", ts, err)
		}
	}
}

// truncateLabel shortens s to at most n runes for display.
func truncateLabel(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
