package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/gymsync/internal/models"
)

// RunSeed выполняет полную первичную синхронизацию.
func RunSeed(ctx context.Context, app *App) error {
	result, err := app.Sync.Seed(ctx)
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}

	if result.Skipped {
		fmt.Println("Seed already completed, nothing to do (run 'delta' for incremental sync)")
		return nil
	}

	fmt.Printf("Seed completed: %d kinds, %d pages, %d records pulled, %d applied\n",
		result.Kinds, result.Pages, result.Pulled, result.Applied)
	printSkips(result.SkippedItems, result.SkippedLinks)

	return nil
}

// RunDelta выполняет инкрементальную синхронизацию.
func RunDelta(ctx context.Context, app *App) error {
	result, err := app.Sync.Delta(ctx, nil)
	if err != nil {
		return fmt.Errorf("delta failed: %w", err)
	}

	fmt.Printf("Delta completed: %d kinds, %d pages, %d records pulled, %d applied\n",
		result.Kinds, result.Pages, result.Pulled, result.Applied)
	printSkips(result.SkippedItems, result.SkippedLinks)

	return nil
}

// RunPush отправляет накопленные локальные изменения на сервер.
func RunPush(ctx context.Context, app *App) error {
	result, err := app.Dispatcher.Dispatch(ctx)
	if err != nil {
		if result != nil && result.Offline {
			return fmt.Errorf("server unreachable, nothing was sent")
		}
		return fmt.Errorf("push failed: %w", err)
	}

	fmt.Printf("Push completed: %d attempted, %d sent, %d retained, %d dropped\n",
		result.Attempted, result.Sent, result.Retained, result.Dropped)

	return nil
}

// RunStatus показывает состояние синхронизации и размер очереди.
func RunStatus(ctx context.Context, app *App) error {
	status, err := app.Sync.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}

	state := status.State
	fmt.Printf("Partition:       %s\n", state.Partition)
	fmt.Printf("Seed completed:  %v", state.SeedCompleted)
	if state.SeedCompleted {
		fmt.Printf(" (version %d, at %s)", state.SeedVersion, state.LastSeedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Println()
	if state.SeedInProgress {
		fmt.Println("Seed in progress: yes (previous run did not finish)")
	}
	if !state.LastDeltaAt.IsZero() {
		fmt.Printf("Last delta:      %s\n", state.LastDeltaAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Pending outbox:  %d\n", status.PendingOutbox)

	fmt.Println("Cursors:")
	for _, kind := range models.AllKinds() {
		token, ok := state.Cursors[kind]
		if !ok {
			token = "(none)"
		}
		fmt.Printf("  %-12s %s\n", kind, token)
	}

	return nil
}

func printSkips(items, links int) {
	if items > 0 {
		fmt.Printf("Warning: %d records had malformed payloads and were skipped\n", items)
	}
	if links > 0 {
		fmt.Printf("Warning: %d relation links had missing targets and were skipped\n", links)
	}
}
