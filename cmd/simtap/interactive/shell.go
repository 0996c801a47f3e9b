// Package interactive provides the interactive console for simtap.
package interactive

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/chzyer/readline"

	"github.com/simtap/simtap-go/cmd/simtap/commands"
	"github.com/simtap/simtap-go/pkg/connection"
	"github.com/simtap/simtap-go/pkg/monitor"
	"github.com/simtap/simtap-go/pkg/subscription"
)

// DefaultSubscribeTimeout bounds a watch command.
const DefaultSubscribeTimeout = 30 * time.Second

// Monitor is the part of monitor.Monitor the shell drives.
type Monitor interface {
	SubscribeMany(ctx context.Context, simIDs []string) (*monitor.Subscription, error)
	Entities() []subscription.EntityInfo
	State() connection.State
	Err() error
}

// Shell handles interactive mode for simtap.
type Shell struct {
	mon     Monitor
	rl      *readline.Instance
	out     io.Writer
	printer *commands.PacketPrinter

	mu      sync.Mutex
	watches map[string]*watch
	wg      sync.WaitGroup
}

type watch struct {
	sub     *monitor.Subscription
	cancel  context.CancelFunc
	started time.Time
}

// New creates a new interactive shell on mon.
func New(mon Monitor) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "simtap> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	s := newShell(mon, rl.Stdout())
	s.rl = rl
	return s, nil
}

func newShell(mon Monitor, out io.Writer) *Shell {
	return &Shell{
		mon:     mon,
		out:     out,
		printer: commands.NewPacketPrinter(out, nil),
		watches: make(map[string]*watch),
	}
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Shell) Stdout() io.Writer {
	return s.out
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()
	defer s.closeAll()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}

		if !s.Execute(ctx, line) {
			cancel()
			return
		}
	}
}

// Execute runs one command line. It returns false when the shell should exit.
func (s *Shell) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "watch", "w":
		s.cmdWatch(ctx, args)
	case "unwatch", "u":
		s.cmdUnwatch(args)
	case "list", "ls":
		s.cmdList()
	case "entities", "e":
		s.cmdEntities()
	case "status", "s":
		s.cmdStatus()
	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Exiting...")
		return false
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (s *Shell) printHelp() {
	fmt.Fprint(s.out, `
Commands:
  watch <sim-id>...    Subscribe to packets of one or more SIMs
  unwatch <sub-id>     Close a subscription (id or unique prefix)
  list                 List open subscriptions
  entities             Show SIM attachment state
  status               Show connection status
  help                 Show this help
  quit                 Exit
`)
}

func (s *Shell) cmdWatch(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "Usage: watch <sim-id>...")
		return
	}

	subCtx, cancel := context.WithTimeout(ctx, DefaultSubscribeTimeout)
	sub, err := s.mon.SubscribeMany(subCtx, args)
	cancel()
	if err != nil {
		fmt.Fprintf(s.out, "Watch failed: %v\n", err)
		return
	}

	watchCtx, stop := context.WithCancel(ctx)
	w := &watch{sub: sub, cancel: stop, started: time.Now()}

	s.mu.Lock()
	s.watches[sub.ID()] = w
	s.mu.Unlock()

	fmt.Fprintf(s.out, "Watching %s as %s\n", strings.Join(sub.SimIDs(), ", "), shortID(sub.ID()))

	s.wg.Add(1)
	go s.pump(watchCtx, w)
}

// pump prints packets of w until it is closed or its connection is lost.
func (s *Shell) pump(ctx context.Context, w *watch) {
	defer s.wg.Done()
	defer s.remove(w)

	for pkt, err := range w.sub.Packets(ctx) {
		if err != nil {
			if ctx.Err() == nil {
				fmt.Fprintf(s.out, "Watch %s ended: %v\n", shortID(w.sub.ID()), err)
			}
			return
		}
		if err := s.printer.Print(pkt); err != nil {
			return
		}
	}
}

func (s *Shell) remove(w *watch) {
	s.mu.Lock()
	if s.watches[w.sub.ID()] == w {
		delete(s.watches, w.sub.ID())
	}
	s.mu.Unlock()
	w.cancel()
	w.sub.Close()
}

func (s *Shell) cmdUnwatch(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: unwatch <sub-id>")
		return
	}

	w, err := s.lookup(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	w.cancel()
	w.sub.Close()
	fmt.Fprintf(s.out, "Closed %s\n", shortID(w.sub.ID()))
}

// lookup finds a watch by full id or unique prefix.
func (s *Shell) lookup(id string) (*watch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.watches[id]; ok {
		return w, nil
	}
	var found *watch
	for key, w := range s.watches {
		if strings.HasPrefix(key, id) {
			if found != nil {
				return nil, fmt.Errorf("ambiguous subscription id: %s", id)
			}
			found = w
		}
	}
	if found == nil {
		return nil, fmt.Errorf("no subscription %s", id)
	}
	return found, nil
}

func (s *Shell) cmdList() {
	s.mu.Lock()
	watches := make([]*watch, 0, len(s.watches))
	for _, w := range s.watches {
		watches = append(watches, w)
	}
	s.mu.Unlock()

	if len(watches) == 0 {
		fmt.Fprintln(s.out, "No subscriptions")
		return
	}
	slices.SortFunc(watches, func(a, b *watch) int {
		return a.started.Compare(b.started)
	})

	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSIMS\tPENDING\tAGE")
	for _, w := range watches {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
			shortID(w.sub.ID()),
			strings.Join(w.sub.SimIDs(), ","),
			w.sub.Pending(),
			time.Since(w.started).Round(time.Second))
	}
	tw.Flush()
}

func (s *Shell) cmdEntities() {
	entities := s.mon.Entities()
	if len(entities) == 0 {
		fmt.Fprintln(s.out, "No SIMs")
		return
	}

	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SIM\tSTATE\tADDRESS\tSUBSCRIBERS")
	for _, e := range entities {
		state := "attaching"
		switch {
		case e.Err != nil:
			state = "rejected: " + e.Err.Error()
		case e.Attached:
			state = "attached"
		}
		addr := "-"
		if e.Address.IsValid() {
			addr = e.Address.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", e.ID, state, addr, e.Subscribers)
	}
	tw.Flush()
}

func (s *Shell) cmdStatus() {
	s.mu.Lock()
	n := len(s.watches)
	s.mu.Unlock()

	fmt.Fprintf(s.out, "State:         %s\n", s.mon.State())
	if err := s.mon.Err(); err != nil {
		fmt.Fprintf(s.out, "Last error:    %v\n", err)
	}
	fmt.Fprintf(s.out, "SIMs:          %d\n", len(s.mon.Entities()))
	fmt.Fprintf(s.out, "Subscriptions: %d\n", n)
	fmt.Fprintf(s.out, "Packets:       %d\n", s.printer.Count())
}

// closeAll closes every open subscription and waits for the printers.
func (s *Shell) closeAll() {
	s.mu.Lock()
	watches := make([]*watch, 0, len(s.watches))
	for _, w := range s.watches {
		watches = append(watches, w)
	}
	s.mu.Unlock()

	for _, w := range watches {
		w.cancel()
		w.sub.Close()
	}
	s.wg.Wait()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
