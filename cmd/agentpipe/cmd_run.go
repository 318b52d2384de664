package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"agentpipe/internal/config"
	"agentpipe/internal/result"
	"agentpipe/internal/runner"
	"agentpipe/internal/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	sessionID  string
	runTitle   string
	jsonOutput bool
)

var runCmd = &cobra.Command{
	Use:   "run [query...]",
	Short: "Run the agent on a query and stream its output",
	Long: `Starts the configured agent process for the query, renders each agent
message as it completes and prints the decoded execution report at the end.

The raw stdout of the run is kept as a transcript in the session's logs
directory so it can be replayed later.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var replayCmd = &cobra.Command{
	Use:   "replay <transcript> [query]",
	Short: "Stream a recorded transcript as if the agent were running",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  replayTranscript,
}

func init() {
	runCmd.Flags().StringVar(&sessionID, "session", "", "Reuse an existing session id")
	runCmd.Flags().StringVar(&runTitle, "title", "", "Heading shown above progress lines")
	runCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the decoded result as JSON")

	replayCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the decoded result as JSON")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func openSession(cfg *config.Config) (*session.Session, error) {
	if sessionID != "" {
		return session.Open(cfg.Sessions.Root, sessionID)
	}
	return session.New(cfg.Sessions.Root)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	sess, err := openSession(cfg)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}

	transcriptPath := sess.TranscriptPath(time.Now().Format("20060102-150405"))
	transcript, err := os.Create(transcriptPath)
	if err != nil {
		return fmt.Errorf("failed to create transcript: %w", err)
	}
	defer transcript.Close()

	r, err := runner.New(cfg, sess, runner.WithTitle(runTitle), runner.WithTranscript(transcript))
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	logger.Info("Starting run",
		zap.String("session", sess.ID),
		zap.String("outputs", sess.OutputsDir()),
		zap.String("transcript", transcriptPath))

	out := cmd.OutOrStdout()
	p := newPrinter(out, plain || jsonOutput)
	res, err := r.Run(ctx, strings.Join(args, " "), quietUpdates(p))
	if err != nil {
		return err
	}
	return printOutcome(out, res)
}

func replayTranscript(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	r, err := runner.New(cfg, nil, runner.WithTitle(runTitle))
	if err != nil {
		return err
	}

	query := ""
	if len(args) > 1 {
		query = args[1]
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	out := cmd.OutOrStdout()
	res, err := r.Replay(ctx, args[0], query, quietUpdates(newPrinter(out, plain || jsonOutput)))
	if err != nil {
		return err
	}
	return printOutcome(out, res)
}

// quietUpdates drops the streamed report in --json mode so the result JSON
// is the only document on stdout.
func quietUpdates(p *printer) func(runner.Update) {
	if !jsonOutput {
		return p.update
	}
	return func(u runner.Update) {
		if u.Kind == runner.UpdateFailure {
			fmt.Fprintln(os.Stderr, u.Text)
		}
	}
}

func printOutcome(out io.Writer, res result.ExecutionResult) error {
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(res)
	}
	if files := res.OutputFiles(); len(files) > 0 {
		fmt.Fprintln(out, "Output files:")
		for _, f := range files {
			fmt.Fprintf(out, "  %s\n", f)
		}
	}
	return nil
}
