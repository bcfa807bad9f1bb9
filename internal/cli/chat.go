package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/memvra/dejavu/internal/engine"
	"github.com/memvra/dejavu/internal/response"
)

func newChatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive prompt that answers from the cache",
		Long: `Read messages from stdin and print the adaptive response for each one.

Lines starting with ':' are commands:

  :stats          cache and compression statistics
  :rotate         close the open unit now
  :vacuum         evict units older than the temporal window
  :similar <q>    list cached units similar to q
  :unit <id>      show a unit's entries
  :quit           exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			interactive := term.IsTerminal(int(os.Stdin.Fd()))
			if interactive {
				fmt.Println("dejavu chat. Type :quit to exit.")
			}
			return runChat(cmd.Context(), s.engine, os.Stdin, os.Stdout, interactive, sessionID)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session ID recorded with each message")
	return cmd
}

// runChat reads lines from in until EOF or :quit.
func runChat(ctx context.Context, e *engine.Engine, in io.Reader, out io.Writer, prompt bool, sessionID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		if prompt {
			fmt.Fprint(out, "> ")
		}
		if !sc.Scan() {
			break
		}
		quit, err := handleLine(ctx, e, out, sc.Text(), sessionID)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
	return sc.Err()
}

// handleLine processes one line of chat input.
func handleLine(ctx context.Context, e *engine.Engine, out io.Writer, line, sessionID string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, ":") {
		resp, err := e.AddMessageWithSession(ctx, line, sessionID)
		if err != nil && !errors.Is(err, engine.ErrRotation) {
			return false, err
		}
		printResponse(out, resp)
		return false, err
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "quit", "q", "exit":
		return true, nil
	case "stats":
		printStats(out, e.Stats(), e.Config().TargetRatio)
	case "rotate":
		p, err := e.ForceRotate()
		if err != nil {
			return false, err
		}
		if p == nil {
			fmt.Fprintln(out, "No open unit.")
		} else {
			fmt.Fprintf(out, "Rotated %s (%d entries, %.1fx)\n", p.ID, p.Len(), p.CompressionRatio())
		}
	case "vacuum":
		fmt.Fprintf(out, "Evicted %d unit(s)\n", e.Vacuum())
	case "similar":
		if arg == "" {
			return false, errors.New("usage: :similar <query>")
		}
		results, err := e.FindSimilar(ctx, arg, 5)
		if err != nil {
			return false, err
		}
		if len(results) == 0 {
			fmt.Fprintln(out, "No similar units.")
		}
		for i, r := range results {
			fmt.Fprintf(out, "%d. %s  %.3f  %s\n", i+1, r.Unit.ID, r.Similarity, strings.Join(r.Unit.Keywords, ", "))
		}
	case "unit":
		if arg == "" {
			return false, errors.New("usage: :unit <id>")
		}
		contents, err := e.DecompressUnit(arg)
		if err != nil {
			return false, err
		}
		for i, c := range contents {
			fmt.Fprintf(out, "[%d] %s\n", i, c)
		}
	default:
		return false, fmt.Errorf("unknown command :%s", name)
	}
	return false, nil
}

func printResponse(out io.Writer, r response.Response) {
	if r.IsAdaptive() {
		fmt.Fprintf(out, "[%s %.1f%% | ~%d tokens saved]\n", r.Tier, r.Similarity*100, r.TokensSaved)
	} else {
		fmt.Fprintf(out, "[%s]\n", r.Tier)
	}
	fmt.Fprintln(out, r.Content)
}

func printStats(out io.Writer, s engine.Stats, target float64) {
	fmt.Fprintf(out, "Units:        %d / %d (%.1f%%)\n", s.TotalUnits, s.CacheCapacity, s.CacheUsage())
	fmt.Fprintf(out, "Entries:      %d cached, %d open\n", s.TotalEntries, s.OpenEntries)
	fmt.Fprintf(out, "Bytes:        %d -> %d\n", s.OriginalBytes, s.CompressedBytes)
	status := "below target"
	if s.MeetsTarget(target) {
		status = "meets target"
	}
	fmt.Fprintf(out, "Avg ratio:    %.1fx (%s %.0fx)\n", s.AverageRatio, status, target)
}
