package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/memvra/dejavu/internal/engine"
	"github.com/memvra/dejavu/internal/response"
)

func newReplayCmd() *cobra.Command {
	var (
		sessionID string
		rotate    bool
	)

	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Feed a transcript through the engine, one message per line",
		Long: `Replay a transcript file through the engine and report how many messages
would have been answered from the cache.

Blank lines are skipped. Use '-' to read from stdin.

Examples:
  dejavu replay transcript.txt
  dejavu replay --session standup notes.txt
  cat log.txt | dejavu replay -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := readLines(args[0])
			if err != nil {
				return err
			}
			if len(lines) == 0 {
				fmt.Println("Nothing to replay.")
				return nil
			}

			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			bar := progressbar.NewOptions(len(lines),
				progressbar.OptionSetDescription("  Replaying"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			sum, err := replay(cmd.Context(), s.engine, lines, sessionID, func() { _ = bar.Add(1) })
			_ = bar.Finish()
			if err != nil {
				return err
			}

			if rotate {
				if _, err := s.engine.ForceRotate(); err != nil {
					return err
				}
			}
			sum.print(os.Stdout)
			printStats(os.Stdout, s.engine.Stats(), s.engine.Config().TargetRatio)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session ID recorded with each message")
	cmd.Flags().BoolVar(&rotate, "rotate", true, "rotate the open unit when the replay ends")
	return cmd
}

// replaySummary counts responses by tier.
type replaySummary struct {
	Messages    int
	ByTier      map[response.Tier]int
	TokensSaved int
	Failed      int
}

func (s replaySummary) print(w io.Writer) {
	fmt.Fprintf(w, "Messages:     %d\n", s.Messages)
	for _, tier := range []response.Tier{response.TierReference, response.TierPartial, response.TierFull} {
		fmt.Fprintf(w, "  %-10s  %d\n", tier, s.ByTier[tier])
	}
	if s.Failed > 0 {
		fmt.Fprintf(w, "  failed      %d\n", s.Failed)
	}
	fmt.Fprintf(w, "Tokens saved: ~%d\n", s.TokensSaved)
}

// replay adds each line in order. Embedding failures are counted and
// logged; a rotation failure stops the replay.
func replay(ctx context.Context, e *engine.Engine, lines []string, sessionID string, step func()) (replaySummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sum := replaySummary{ByTier: make(map[response.Tier]int)}
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		resp, err := e.AddMessageWithSession(ctx, line, sessionID)
		if step != nil {
			step()
		}
		if errors.Is(err, engine.ErrRotation) {
			return sum, err
		}
		if err != nil {
			sum.Failed++
			logger.Warn().Err(err).Msg("message skipped")
			continue
		}
		sum.Messages++
		sum.ByTier[resp.Tier]++
		if resp.IsAdaptive() {
			sum.TokensSaved += resp.TokensSaved
		}
	}
	return sum, nil
}

// readLines returns the non-blank, trimmed lines of path ("-" is stdin).
func readLines(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open transcript: %w", err)
		}
		defer f.Close()
		r = f
	}
	return scanLines(r)
}

func scanLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}
