// mia CLI - type-checks, compiles and runs mia programs
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/sadraskol/mia/compiler"
	"github.com/sadraskol/mia/manifest"
	"github.com/sadraskol/mia/server"
	"github.com/sadraskol/mia/store"
	"github.com/sadraskol/mia/vm"
)

var log = commonlog.GetLogger("mia")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// options holds the parsed command line.
type options struct {
	debug     bool
	check     bool
	disasm    bool
	output    string
	entry     string
	noCache   bool
	maxFrames int
	serve     bool
	port      int
	lsp       bool
	repl      bool
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	fs := flag.NewFlagSet("mia", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.BoolVar(&opts.debug, "d", false, "Trace every stage (debug logging)")
	fs.BoolVar(&opts.check, "check", false, "Parse and type-check only")
	fs.BoolVar(&opts.disasm, "disasm", false, "Print the compiled bytecode instead of running")
	fs.StringVar(&opts.output, "o", "", "Write the compiled image to this file instead of running")
	fs.StringVar(&opts.entry, "entry", "", "Entry-point binding (default from mia.toml or \"main\")")
	fs.BoolVar(&opts.noCache, "no-cache", false, "Bypass the compile cache")
	fs.IntVar(&opts.maxFrames, "max-frames", 0, "Call depth limit (default from mia.toml)")
	fs.BoolVar(&opts.serve, "serve", false, "Start the evaluation server (Connect HTTP/JSON + gRPC)")
	fs.IntVar(&opts.port, "port", 0, "Evaluation server port (used with -serve)")
	fs.BoolVar(&opts.lsp, "lsp", false, "Start the language server on stdio")
	fs.BoolVar(&opts.repl, "i", false, "Start interactive REPL")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: mia [options] <file.m | file.miac>\n")
		fmt.Fprintf(stderr, "       mia cache [stats | prune | clear]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  mia prog.m               # Run prog.m and print its result\n")
		fmt.Fprintf(stderr, "  mia -check prog.m        # Type-check and list warnings\n")
		fmt.Fprintf(stderr, "  mia -o prog.miac prog.m  # Compile to an image\n")
		fmt.Fprintf(stderr, "  mia prog.miac            # Run an image without re-checking\n")
		fmt.Fprintf(stderr, "  mia -serve -port 8080    # Start the evaluation server on :8080\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return opts, fs.Args(), nil
}

// run executes the command line and returns the process exit status.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) > 0 && args[0] == "cache" {
		return handleCacheCommand(args[1:], stdout, stderr)
	}

	opts, paths, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.debug {
		commonlog.Configure(2, nil)
	} else {
		commonlog.Configure(-1, nil)
	}

	start := "."
	if len(paths) > 0 {
		start = filepath.Dir(paths[0])
	}
	m, err := loadManifest(start)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if opts.entry == "" {
		opts.entry = m.Project.Entry
	}
	if opts.maxFrames == 0 {
		opts.maxFrames = m.Run.MaxFrames
	}

	switch {
	case opts.lsp:
		if err := server.NewLSP(opts.entry).Run(); err != nil {
			fmt.Fprintf(stderr, "LSP error: %v\n", err)
			return 1
		}
		return 0

	case opts.serve:
		return serve(opts, m, stderr)

	case opts.repl || len(paths) == 0:
		runREPL(stdin, stdout, opts)
		return 0
	}

	if len(paths) != 1 {
		fmt.Fprintf(stderr, "Error: expected exactly one file, got %d\n", len(paths))
		return 2
	}
	return runFile(paths[0], opts, m, stdout, stderr)
}

// loadManifest finds mia.toml above dir, falling back to the defaults.
func loadManifest(dir string) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}
	return m, nil
}

func serve(opts *options, m *manifest.Manifest, stderr io.Writer) int {
	addr := m.Server.Addr
	if opts.port != 0 {
		addr = fmt.Sprintf(":%d", opts.port)
	}

	serverOpts := []server.ServerOption{
		server.WithEntry(opts.entry),
		server.WithMaxFrames(opts.maxFrames),
		server.WithSessionTTL(m.Server.SessionTTL.Duration),
	}
	if m.Cache.Enabled && !opts.noCache {
		st, err := openCache(m)
		if err != nil {
			fmt.Fprintf(stderr, "Warning: compile cache disabled: %v\n", err)
		} else {
			defer st.Close()
			serverOpts = append(serverOpts, server.WithStore(st))
		}
	}

	srv := server.New(serverOpts...)
	defer srv.Stop()
	if err := srv.ListenAndServe(addr); err != nil {
		fmt.Fprintf(stderr, "Server error: %v\n", err)
		return 1
	}
	return 0
}

// openCache opens the project's compile cache, or the per-user one when
// there is no mia.toml.
func openCache(m *manifest.Manifest) (*store.Store, error) {
	if m.Dir == "" {
		path, err := store.DefaultPath()
		if err != nil {
			return nil, err
		}
		return store.Open(path)
	}
	return store.Open(m.CachePath())
}

// vmOptions returns the VM configuration for a run.
func vmOptions(opts *options, m *manifest.Manifest) []vm.Option {
	return []vm.Option{
		vm.WithMaxFrames(opts.maxFrames),
		vm.WithTrace(opts.debug || m.Run.Trace),
	}
}

// reportError prints err and returns its exit status.
func reportError(stderr io.Writer, err error) int {
	var te *compiler.TypeError
	if errors.As(err, &te) {
		fmt.Fprintln(stderr, err)
	} else {
		fmt.Fprintf(stderr, "runtime error: %v\n", err)
	}
	return compiler.ExitCode(err)
}

func isImage(path string) bool {
	return strings.HasSuffix(path, ".miac")
}
