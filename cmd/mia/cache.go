package main

import (
	"context"
	"fmt"
	"io"
	"time"
)

// handleCacheCommand processes the `mia cache` subcommand.
// Usage:
//
//	mia cache              # same as stats
//	mia cache stats        # image count, size and hits
//	mia cache prune        # drop images older than [cache] max-age
//	mia cache clear        # drop every image
func handleCacheCommand(args []string, stdout, stderr io.Writer) int {
	action := "stats"
	if len(args) > 0 {
		action = args[0]
	}

	m, err := loadManifest(".")
	if err != nil {
		fmt.Fprintf(stderr, "Error loading manifest: %v\n", err)
		return 1
	}
	st, err := openCache(m)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening cache: %v\n", err)
		return 1
	}
	defer st.Close()

	ctx := context.Background()
	switch action {
	case "stats":
		stats, err := st.Stats(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "%s: %d images, %d bytes, %d hits\n", st.Path(), stats.Images, stats.Bytes, stats.Hits)

	case "prune", "clear":
		cutoff := time.Now().Add(time.Minute)
		if action == "prune" {
			cutoff = time.Now().Add(-m.Cache.MaxAge.Duration)
		}
		n, err := st.Prune(ctx, cutoff)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "removed %d images\n", n)

	default:
		fmt.Fprintf(stderr, "Unknown cache command: %s (expected stats, prune or clear)\n", action)
		return 2
	}
	return 0
}
