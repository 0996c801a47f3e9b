// Command simtap streams live packet captures of Onomondo SIMs.
//
// Usage:
//
//	simtap <command> [flags] [args]
//
// Commands:
//
//	watch      Print packets of one or more SIMs
//	shell      Interactive console
//	log view   View a protocol log in human-readable format
//	log stats  Show statistics about a protocol log
//
// Examples:
//
//	# Watch two SIMs and save the traffic
//	SIMTAP_API_KEY=... simtap watch -pcap out.pcap 000123456 000654321
//
//	# Keep watching across connection loss and record protocol events
//	simtap watch -reconnect -protocol-log session.tlog 000123456
//
//	# Show only state changes from a protocol log
//	simtap log view -category state session.tlog
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/simtap/simtap-go/cmd/simtap/commands"
	"github.com/simtap/simtap-go/cmd/simtap/interactive"
	"github.com/simtap/simtap-go/pkg/socketio"
)

const usage = `simtap - Onomondo live packet capture

Usage:
  simtap <command> [flags] [args]

Commands:
  watch [flags] <sim-id>...     Print packets of one or more SIMs
  shell [flags]                 Interactive console
  log view [flags] <file.tlog>  View a protocol log
  log stats <file.tlog>         Show protocol log statistics
  version                       Print the version

Use "simtap <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "watch":
		runWatch(args)
	case "shell":
		runShell(args)
	case "log":
		runLog(args)
	case "version":
		fmt.Println("simtap", socketio.Version)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// parseConfig parses the connection flags and builds a logger.
func parseConfig(fs *flag.FlagSet, args []string) (commands.Config, *slog.Logger) {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	cfg, err := commands.ResolveConfig(fs)
	if err != nil {
		fatal(err)
	}
	logger, err := commands.NewLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		fatal(err)
	}
	return cfg, logger
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `simtap watch - Print packets of one or more SIMs

Usage:
  simtap watch [flags] <sim-id>...

Flags:
`)
		fs.PrintDefaults()
	}
	commands.RegisterFlags(fs)
	fs.String("pcap", "", "Also write packets to a pcap file (raw IP link type)")
	fs.Bool("reconnect", false, "Reconnect with backoff and resubscribe after connection loss")
	fs.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	cfg, logger := parseConfig(fs, args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: at least one SIM id required")
		fs.Usage()
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := commands.RunWatch(ctx, cfg, fs.Args(), os.Stdout, logger); err != nil {
		cancel()
		fatal(err)
	}
}

func runShell(args []string) {
	fs := flag.NewFlagSet("shell", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `simtap shell - Interactive console

Usage:
  simtap shell [flags]

Flags:
`)
		fs.PrintDefaults()
	}
	commands.RegisterFlags(fs)
	cfg, logger := parseConfig(fs, args)

	ctx, cancel := signalContext()
	defer cancel()

	sess, err := commands.NewSession(cfg, logger)
	if err != nil {
		fatal(err)
	}
	defer sess.Close()

	shell, err := interactive.New(sess.Monitor)
	if err != nil {
		sess.Close()
		fatal(err)
	}

	if err := sess.Monitor.Connect(ctx); err != nil {
		sess.Close()
		fatal(fmt.Errorf("failed to connect: %w", err))
	}
	fmt.Fprintf(shell.Stdout(), "Connected to %s\n", cfg.URL)

	shell.Run(ctx, cancel)
}

func runLog(args []string) {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	switch args[0] {
	case "view":
		runLogView(args[1:])
	case "stats":
		runLogStats(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown log command: %s\n", args[0])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runLogView(args []string) {
	fs := flag.NewFlagSet("log view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `simtap log view - View protocol log in human-readable format

Usage:
  simtap log view [flags] <file.tlog>

Flags:
`)
		fs.PrintDefaults()
	}

	layer := fs.String("layer", "", "Filter by layer (transport, event, monitor)")
	direction := fs.String("direction", "", "Filter by direction (in, out, local)")
	category := fs.String("category", "", "Filter by category (message, control, state, error)")
	sim := fs.String("sim", "", "Filter by SIM id")
	connID := fs.String("conn-id", "", "Filter by connection ID")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	filter := commands.ViewFilter{SimID: *sim, ConnectionID: *connID}

	if *layer != "" {
		l, err := commands.ParseLayerFlag(*layer)
		if err != nil {
			fatal(err)
		}
		filter.Layer = &l
	}
	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		if err != nil {
			fatal(err)
		}
		filter.Direction = &d
	}
	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fatal(err)
		}
		filter.Category = &c
	}

	if err := commands.RunView(fs.Arg(0), filter, os.Stdout); err != nil {
		fatal(err)
	}
}

func runLogStats(args []string) {
	fs := flag.NewFlagSet("log stats", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		os.Exit(1)
	}
	if err := commands.RunStats(fs.Arg(0), os.Stdout); err != nil {
		fatal(err)
	}
}
