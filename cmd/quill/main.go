// Command quill runs the messaging cache against the mock transport and
// prints the reconciled conversation list. Useful as a development harness.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	quill "Quill"
	"Quill/pkg/core"
	"Quill/pkg/logging"
	"Quill/pkg/providers"
)

func main() {
	log := logging.New(os.Getenv("QUILL_LOG_LEVEL"), nil)

	cfg := core.Config{
		"agent_id":   "agent-local",
		"admin":      true,
		"locale":     os.Getenv("LANG"),
		"cache_path": ":memory:",
	}

	app, err := quill.New(cfg, providers.NewMockTransport(true), providers.NewMemoryBlobStore(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build app")
	}

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start sync")
	}
	defer app.Shutdown()

	// Give the initial refresh a moment, then dump the list view.
	time.Sleep(500 * time.Millisecond)
	for _, conv := range app.Conversations() {
		fmt.Printf("%-12s %-16s %s\n", conv.Channel, conv.Name, app.ConversationPreview(conv.ID))
	}
}
