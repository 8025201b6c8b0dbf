package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/callgate/gate"
	"github.com/wippyai/callgate/state"
	"github.com/wippyai/callgate/wasmnative"
)

type options struct {
	wasmFile string
	name     string
	funcName string
	args     string
	maxStack int
	wasi     bool
	list     bool
	verbose  bool
}

func main() {
	var opts options
	flag.StringVar(&opts.wasmFile, "wasm", "", "Path to core wasm module")
	flag.StringVar(&opts.name, "name", wasmnative.DefaultName, "Global table the exports are published under")
	flag.StringVar(&opts.funcName, "func", "", "Export to call (optional)")
	flag.StringVar(&opts.args, "args", "", "Numeric arguments (comma-separated)")
	flag.IntVar(&opts.maxStack, "max-stack", 0, "Maximum stack slots per thread (0 = default)")
	flag.BoolVar(&opts.wasi, "wasi", false, "Provide wasi_snapshot_preview1 imports")
	flag.BoolVar(&opts.list, "list", false, "List bound exports and exit")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose gate logging")
	interactive := flag.Bool("i", false, "Interactive mode with TUI")
	flag.Parse()

	if opts.wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: gaterun -wasm <file.wasm> [-func name] [-args 1,2]")
		fmt.Fprintln(os.Stderr, "       gaterun -wasm <file.wasm> -list")
		fmt.Fprintln(os.Stderr, "       gaterun -wasm <file.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	if opts.verbose {
		if err := setupLogging(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	var err error
	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		err = runInteractive(opts)
	} else {
		err = run(opts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging() error {
	log, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	state.SetLogger(log.Named("state"))
	gate.SetLogger(log.Named("gate"))
	wasmnative.SetLogger(log.Named("wasmnative"))
	return nil
}

// session is a state with one bound module.
type session struct {
	L   *state.State
	mod *wasmnative.Module
}

func openSession(ctx context.Context, opts options) (*session, error) {
	data, err := os.ReadFile(opts.wasmFile)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	L := gate.NewState(state.Config{MaxStack: opts.maxStack})
	if L == nil {
		return nil, fmt.Errorf("create state: out of memory or invalid config")
	}

	bindOpts := []wasmnative.Option{wasmnative.WithName(opts.name)}
	if opts.wasi {
		bindOpts = append(bindOpts, wasmnative.WithWASI())
	}
	mod, err := wasmnative.Bind(ctx, L, data, bindOpts...)
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("bind: %w", err)
	}
	return &session{L: L, mod: mod}, nil
}

func (s *session) Close(ctx context.Context) {
	s.L.Close()
	s.mod.Close(ctx)
}

// call invokes an export through its gate closure and formats the results.
func (s *session) call(export string, args []float64) ([]string, error) {
	L := s.L
	L.SetTop(0)
	if !L.CheckStack(len(args) + 2) {
		return nil, fmt.Errorf("too many arguments")
	}

	L.GetGlobal(s.mod.Name())
	L.PushString(export)
	L.RawGet(-2)
	L.Remove(-2)
	if L.TypeAt(-1) != state.TypeFunction {
		L.SetTop(0)
		return nil, fmt.Errorf("no export named %q", export)
	}
	for _, a := range args {
		L.PushNumber(a)
	}

	if status := L.PCall(len(args), state.MultRet); status != state.StatusOK {
		msg := state.Format(L.Get(-1))
		L.SetTop(0)
		return nil, fmt.Errorf("%s: %s", status, msg)
	}

	results := make([]string, L.Top())
	for i := range results {
		results[i] = state.Format(L.Get(i + 1))
	}
	L.SetTop(0)
	return results, nil
}

func parseArgs(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func run(opts options) error {
	ctx := context.Background()

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	exports := s.mod.Exports()
	fmt.Printf("Module: %s\n", opts.wasmFile)
	fmt.Printf("\nBound exports (%s.*):\n", s.mod.Name())
	for _, e := range exports {
		fmt.Printf("  %s\n", e)
	}

	if opts.list {
		return nil
	}

	funcName := opts.funcName
	if funcName == "" {
		if len(exports) != 1 {
			fmt.Printf("\nNo function specified.\n")
			fmt.Printf("Use -func to specify a function to call.\n")
			return nil
		}
		funcName = exports[0].Name
	}

	args, err := parseArgs(opts.args)
	if err != nil {
		return err
	}

	fmt.Printf("\nCalling %s.%s(%s)...\n", s.mod.Name(), funcName, opts.args)
	results, err := s.call(funcName, args)
	if err != nil {
		return fmt.Errorf("call %s: %w", funcName, err)
	}
	fmt.Printf("Result: %s\n", strings.Join(results, ", "))
	return nil
}
