package cli

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"onboarding-engine/internal/classifier"
	"onboarding-engine/internal/config"
)

// ClassifyCommand creates the classify command. With a Gemini API key
// configured the files are sent to the live extraction backend; otherwise
// the deterministic filename heuristic runs.
func ClassifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <file>...",
		Short: "Classify uploaded documents into compliance document types",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd, args)
		},
	}
	return cmd
}

func runClassify(cmd *cobra.Command, files []string) error {
	cfg := config.Load()
	ctx := cmd.Context()

	extractor, err := classifier.NewExtractor(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return err
	}
	defer extractor.Close()
	adapter := classifier.NewAdapter(extractor, cfg.ExtractionTimeout, cfg.ExtractionRetries)

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		mimeType := mime.TypeByExtension(filepath.Ext(file))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		analysis := adapter.Classify(ctx, uuid.New(), filepath.Base(file), mimeType, data)
		fmt.Printf("%s: %s (confidence %.2f, %s, status %s)\n",
			analysis.FileName, analysis.DetectedType, analysis.Confidence, analysis.Source, analysis.Status)
		for _, check := range analysis.Checks {
			fmt.Printf("   check %-26s %-14s %s\n", check.Name, check.Result, check.Detail)
		}
	}
	return nil
}
