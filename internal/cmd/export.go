package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relayproj/relay/internal/appdir"
	"github.com/relayproj/relay/internal/conversion"
	"github.com/relayproj/relay/internal/fileutil"
	"github.com/relayproj/relay/internal/timeline"
)

var (
	exportIn  string
	exportOut string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a saved transcript as a standalone HTML page",
	Long: `Export reads a transcript saved by "relay chat" and renders it as a
self-contained HTML page with sanitized markdown, syntax highlighting and
mermaid diagrams.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportIn, "in", "", "Transcript file to read (default: the saved transcript)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "transcript.html", "Output HTML file")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	in := exportIn
	if in == "" {
		var err error
		if in, err = appdir.TranscriptFile(); err != nil {
			return err
		}
	}

	var msgs []timeline.Message
	if err := fileutil.ReadJSON(in, &msgs); err != nil {
		return fmt.Errorf("failed to read transcript %s: %w", in, err)
	}
	if len(msgs) == 0 {
		return fmt.Errorf("transcript %s is empty", in)
	}

	// Reconciling is idempotent, so re-running it on an already
	// reconciled transcript is harmless.
	html := conversion.RenderTranscript(timeline.Reconcile(msgs), conversion.DefaultConverter())
	if err := os.WriteFile(exportOut, []byte(html), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOut, err)
	}
	fmt.Printf("wrote %s (%d messages)\n", exportOut, len(msgs))
	return nil
}
