package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sadraskol/mia/compiler"
	"github.com/sadraskol/mia/format"
	"github.com/sadraskol/mia/manifest"
	"github.com/sadraskol/mia/store"
	"github.com/sadraskol/mia/vm"
	"github.com/sadraskol/mia/vm/dist"
)

// runFile checks, compiles and runs one source file or runs an image.
func runFile(path string, opts *options, m *manifest.Manifest, stdout, stderr io.Writer) int {
	if isImage(path) {
		return runImage(path, opts, m, stdout, stderr)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	source := string(data)
	copts := compiler.Options{File: path, Entry: opts.entry}

	if opts.check {
		result, err := compiler.CheckSource(path, source, copts)
		if err != nil {
			return reportError(stderr, err)
		}
		for _, w := range compiler.Analyze(result.Program, result.Resolution, copts) {
			fmt.Fprintf(stderr, "%s: %s\n", path, w)
		}
		return 0
	}

	chunk, err := compileSource(path, source, opts, m, stderr)
	if err != nil {
		return reportError(stderr, err)
	}

	switch {
	case opts.disasm:
		fmt.Fprint(stdout, chunk.Disassemble())
		return 0
	case opts.output != "":
		if err := writeImage(opts.output, chunk, source, opts.entry); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	return execute(chunk, opts, m, stdout, stderr)
}

// compileSource builds source, going through the compile cache when the
// manifest enables it.
func compileSource(path, source string, opts *options, m *manifest.Manifest, stderr io.Writer) (*vm.Chunk, error) {
	ctx := context.Background()
	sourceHash := dist.HashSource(source)

	var st *store.Store
	if m.Cache.Enabled && !opts.noCache {
		var err error
		st, err = openCache(m)
		if err != nil {
			fmt.Fprintf(stderr, "Warning: compile cache disabled: %v\n", err)
		} else {
			defer st.Close()
			pruneCache(ctx, st, m)
			if img, err := st.Get(ctx, sourceHash, opts.entry); err == nil {
				log.Debugf("cache hit for %s", path)
				return img.VMChunk()
			} else if !errors.Is(err, store.ErrImageNotFound) {
				log.Warningf("cache lookup: %s", err)
			}
		}
	}

	result, err := compiler.Build(path, source, compiler.Options{Entry: opts.entry})
	if err != nil {
		return nil, err
	}

	if st != nil {
		img, err := dist.NewImage(result.Chunk, sourceHash, opts.entry)
		if err == nil {
			err = st.Put(ctx, img)
		}
		if err != nil {
			log.Warningf("cache store: %s", err)
		}
	}
	return result.Chunk, nil
}

// pruneCache drops images unused for longer than the configured max age.
func pruneCache(ctx context.Context, st *store.Store, m *manifest.Manifest) {
	if m.Cache.MaxAge.Duration <= 0 {
		return
	}
	if _, err := st.Prune(ctx, time.Now().Add(-m.Cache.MaxAge.Duration)); err != nil {
		log.Warningf("cache prune: %s", err)
	}
}

func writeImage(path string, chunk *vm.Chunk, source, entry string) error {
	img, err := dist.NewImage(chunk, dist.HashSource(source), entry)
	if err != nil {
		return err
	}
	data, err := dist.MarshalImage(img)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func runImage(path string, opts *options, m *manifest.Manifest, stdout, stderr io.Writer) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	img, err := dist.UnmarshalImage(data)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s: %v\n", path, err)
		return 1
	}
	chunk, err := img.VMChunk()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s: %v\n", path, err)
		return 1
	}
	if opts.disasm {
		fmt.Fprint(stdout, chunk.Disassemble())
		return 0
	}
	return execute(chunk, opts, m, stdout, stderr)
}

// execute runs chunk and prints its result, if any.
func execute(chunk *vm.Chunk, opts *options, m *manifest.Manifest, stdout, stderr io.Writer) int {
	value, err := vm.Execute(chunk, vmOptions(opts, m)...)
	if err != nil {
		return reportError(stderr, err)
	}
	if value != nil {
		fmt.Fprintln(stdout, format.JSON(value))
	}
	return 0
}
