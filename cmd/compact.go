package cmd

import (
	"fmt"

	"github.com/illarion/haredb/internal/storage"
)

// Compact rewrites the store to reclaim unused space. It does not need the
// secret key.
func Compact(g Globals) {
	cfg, err := LoadConfig(g)
	if err != nil {
		HandleError(err)
	}

	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		HandleError(err)
	}
	defer logger.Sync()

	sizeBefore, err := storeSize(cfg.Path)
	if err != nil {
		HandleError(err)
	}

	opts := cfg.StoreOptions()
	opts.Logger = logger
	store, err := storage.Open(cfg.Path, opts)
	if err != nil {
		HandleError(err)
	}

	if err := store.Compact(); err != nil {
		store.Close()
		HandleError(err)
	}
	if err := store.Close(); err != nil {
		HandleError(err)
	}

	sizeAfter, err := storeSize(cfg.Path)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Compacted: %s -> %s\n", formatSize(sizeBefore), formatSize(sizeAfter))
}
