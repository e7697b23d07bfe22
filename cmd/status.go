package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/illarion/haredb/internal/keyring"
	"github.com/illarion/haredb/internal/storage"
)

// Status shows store metadata. It does not need the secret key.
func Status(g Globals) {
	cfg, err := LoadConfig(g)
	if err != nil {
		HandleError(err)
	}

	if _, err := os.Stat(cfg.Path); err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("No store found at %s\n", cfg.Path)
			fmt.Println("Run 'haredb set KEY VALUE' to create one")
			return
		}
		HandleError(err)
	}

	meta, count, err := storage.Inspect(cfg.Path, cfg.StoreOptions())
	if err != nil {
		HandleError(err)
	}
	if meta == nil {
		fmt.Printf("Store at %s is not initialized\n", cfg.Path)
		return
	}

	size, err := storeSize(cfg.Path)
	if err != nil {
		HandleError(err)
	}

	mode := "insecure (plaintext)"
	if meta.Secure {
		mode = "secure (XChaCha20-Poly1305)"
	}

	fmt.Printf("Store:    %s\n", cfg.Path)
	fmt.Printf("Driver:   %s\n", meta.Driver)
	fmt.Printf("Mode:     %s\n", mode)
	fmt.Printf("Version:  %s\n", meta.Version)
	if !meta.Created.IsZero() {
		fmt.Printf("Created:  %s\n", meta.Created.Format(time.RFC3339))
	}
	fmt.Printf("Entries:  %d\n", count)
	fmt.Printf("Size:     %s\n", formatSize(size))

	if meta.Secure && meta.StoreID != "" {
		if keyring.HasSecret(meta.StoreID) {
			fmt.Println("Keyring:  secret key stored")
		} else {
			fmt.Println("Keyring:  not stored")
		}
	}
}

// storeSize returns the size of a bolt file or the total size of a badger
// directory
func storeSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	var total int64
	err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}

// formatSize formats a byte size in human-readable form
func formatSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.1f GB", float64(size)/GB)
	case size >= MB:
		return fmt.Sprintf("%.1f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.1f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}
