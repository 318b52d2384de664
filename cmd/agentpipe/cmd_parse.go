package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"agentpipe/internal/result"
	"agentpipe/internal/runner"
	"agentpipe/internal/segment"

	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file|-]",
	Short: "Split agent output into rendered messages",
	Long: `Reads raw agent output from a file or stdin, splits it into messages at
the protocol's agent markers and prints each one. Echoed prompts and text
before the first marker are dropped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: parseMessages,
}

var coerceCmd = &cobra.Command{
	Use:   "coerce [file|-]",
	Short: "Decode a terminal payload into an execution report",
	Long: `Reads a terminal payload from a file or stdin and decodes it into steps
and a summary, repairing common formatting damage. Text that cannot be
decoded is reported as the summary.`,
	Args: cobra.MaximumNArgs(1),
	RunE: coercePayload,
}

var followCmd = &cobra.Command{
	Use:   "follow <transcript>",
	Short: "Stream a transcript that another run is still writing",
	Long: `Tails a transcript file and renders messages as they complete. Stops
with the decoded report when the file is removed, or on interrupt.`,
	Args: cobra.ExactArgs(1),
	RunE: followTranscript,
}

func init() {
	parseCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print messages as JSON")
	coerceCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the decoded result as JSON")
	followCmd.Flags().StringVar(&runTitle, "title", "", "Heading shown above progress lines")
}

// readInput reads the named file, or stdin for "" and "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return string(data), nil
}

type blockJSON struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

type messageJSON struct {
	Language string      `json:"language,omitempty"`
	Blocks   []blockJSON `json:"blocks"`
}

func parseMessages(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	proto, err := cfg.GetProtocol()
	if err != nil {
		return err
	}

	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	msgs := segment.ParseAll(proto, text)
	out := cmd.OutOrStdout()

	if jsonOutput {
		docs := make([]messageJSON, 0, len(msgs))
		for _, m := range msgs {
			doc := messageJSON{Language: m.Language, Blocks: make([]blockJSON, 0, len(m.Blocks))}
			for _, b := range m.Blocks {
				doc.Blocks = append(doc.Blocks, blockJSON{Kind: b.Kind.String(), Content: b.Content})
			}
			docs = append(docs, doc)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(docs)
	}

	p := newPrinter(out, plain)
	for i := range msgs {
		p.update(runner.Update{Kind: runner.UpdateMessage, Text: msgs[i].Render(), Message: &msgs[i]})
	}
	return nil
}

func coercePayload(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}

	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	res := result.Coerce(text)
	if res.Fallback {
		logger.Warn("Payload was not structured, reporting it as the summary")
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printOutcome(out, res)
	}
	newPrinter(out, plain).markdown(result.Markdown(res))
	return printOutcome(out, res)
}

func followTranscript(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	r, err := runner.New(cfg, nil, runner.WithTitle(runTitle))
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	out := cmd.OutOrStdout()
	res, err := r.Follow(ctx, args[0], newPrinter(out, plain).update)
	if err != nil {
		return err
	}
	return printOutcome(out, res)
}
