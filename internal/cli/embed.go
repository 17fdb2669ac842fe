package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"facequant/internal/adapter/fs"
	"facequant/internal/domain"
	"facequant/internal/metrics"
	"facequant/internal/usecase"
)

var (
	embedDir     string
	embedOutput  string
	embedWorkers int
)

var embedCmd = &cobra.Command{
	Use:   "embed [image]",
	Short: "Embed a face image",
	Long: `Embed one image and print the same JSON body /get-embedding returns,
or embed every image below a directory and write one JSON line per file.

Examples:
  facequant embed face.jpg
  facequant embed --dir ./faces -o embeddings.jsonl`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)
	embedCmd.Flags().StringVar(&embedDir, "dir", "", "embed every image below this directory")
	embedCmd.Flags().StringVarP(&embedOutput, "output", "o", "", "write results to this file instead of stdout")
	embedCmd.Flags().IntVar(&embedWorkers, "workers", 0, "concurrent encoder calls (default from config)")
}

// embedLine is one JSON line of batch output.
type embedLine struct {
	Path                string                    `json:"path,omitempty"`
	EmbeddingCompressed domain.QuantizedEmbedding `json:"embedding_compressed,omitempty"`
	ReducedEmb          domain.ReducedEmbedding   `json:"reduced_emb,omitempty"`
	Error               string                    `json:"error,omitempty"`
}

func runEmbed(cmd *cobra.Command, args []string) error {
	if (embedDir == "") == (len(args) == 0) {
		return fmt.Errorf("provide either an image path or --dir")
	}

	cfg := GetConfig()
	p, err := buildPipeline(cfg, GetDataDir(), logger, metrics.Noop())
	if err != nil {
		return err
	}
	defer p.Close()

	out := cmd.OutOrStdout()
	if embedOutput != "" {
		f, err := os.Create(embedOutput)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	if embedDir != "" {
		return runEmbedDir(cmd, p, out)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	result, err := p.embed.Embed(cmd.Context(), data)
	if err != nil {
		return err
	}

	body, err := json.Marshal(embedLine{EmbeddingCompressed: result.Quantized, ReducedEmb: result.Reduced})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(body))
	return nil
}

func runEmbedDir(cmd *cobra.Command, p *pipeline, out io.Writer) error {
	root, err := filepath.Abs(embedDir)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", root)
	}

	cfg := GetConfig()
	workers := cfg.Batch.Workers
	if embedWorkers > 0 {
		workers = embedWorkers
	}

	walker := fs.NewWalker(cfg.Batch.Includes, cfg.Batch.Excludes)
	batch := usecase.NewBatchEmbedUseCase(walker, p.embed, workers)

	fmt.Fprintf(os.Stderr, "Scanning %s...\n", root)

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time

	progress := func(processed, total int, currentFile string) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(os.Stderr)
				}),
			)
		}

		_ = bar.Set(processed)

		if processed > 0 {
			elapsed := time.Since(startTime)
			rate := float64(processed) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-processed)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}

	items, err := batch.Run(cmd.Context(), root, progress)
	if err != nil {
		return fmt.Errorf("batch embedding failed: %w", err)
	}

	enc := json.NewEncoder(out)
	failed := 0
	for _, item := range items {
		rel, err := filepath.Rel(root, item.Path)
		if err != nil {
			rel = item.Path
		}
		line := embedLine{Path: filepath.ToSlash(rel)}
		if item.Err != nil {
			line.Error = item.Err.Error()
			failed++
		} else {
			line.EmbeddingCompressed = item.Result.Quantized
			line.ReducedEmb = item.Result.Reduced
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "\nEmbedding complete:\n")
	fmt.Fprintf(os.Stderr, "  Files embedded: %d\n", len(items)-failed)
	fmt.Fprintf(os.Stderr, "  Files failed:   %d\n", failed)
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
