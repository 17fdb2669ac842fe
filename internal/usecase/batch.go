package usecase

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"facequant/internal/domain"
	"facequant/internal/port"
)

// ProgressFunc is called after each file is processed.
type ProgressFunc func(processed, total int, currentFile string)

// BatchItem is the outcome for one file. Exactly one of Result and Err is set.
type BatchItem struct {
	Path   string
	Result *domain.EmbedResult
	Err    error
}

// BatchEmbedUseCase embeds every image below a directory.
type BatchEmbedUseCase struct {
	walker  port.FileWalker
	embed   *EmbedUseCase
	workers int
}

func NewBatchEmbedUseCase(walker port.FileWalker, embed *EmbedUseCase, workers int) *BatchEmbedUseCase {
	if workers <= 0 {
		workers = 1
	}
	return &BatchEmbedUseCase{
		walker:  walker,
		embed:   embed,
		workers: workers,
	}
}

// Run embeds all matching files. Per-file failures are reported in the
// returned items; only walk errors and cancellation fail the whole run.
// Items are returned in walk order.
func (u *BatchEmbedUseCase) Run(ctx context.Context, root string, progress ProgressFunc) ([]BatchItem, error) {
	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	items := make([]BatchItem, len(files))
	total := len(files)

	var mu sync.Mutex
	processed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.workers)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			item := BatchItem{Path: f.Path}
			data, err := os.ReadFile(f.Path)
			if err != nil {
				item.Err = fmt.Errorf("failed to read file: %w", err)
			} else {
				item.Result, item.Err = u.embed.Embed(gctx, data)
			}
			items[i] = item

			if progress != nil {
				mu.Lock()
				processed++
				progress(processed, total, f.Path)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return items, nil
}
