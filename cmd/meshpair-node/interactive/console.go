// Package interactive provides the interactive command-line interface
// for meshpair-node.
package interactive

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/meshpair/meshpair-go/pkg/ident"
	"github.com/meshpair/meshpair-go/pkg/node"
)

// GetTimeout bounds the get command.
const GetTimeout = 5 * time.Second

// Console handles interactive mode for meshpair-node.
type Console struct {
	node *node.Node
	rl   *readline.Instance
	out  io.Writer
}

// New creates a console reading commands from the terminal.
func New(n *node.Node) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "meshpair> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{node: n, rl: rl, out: rl.Stdout()}, nil
}

func newConsole(n *node.Node, out io.Writer) *Console {
	return &Console{node: n, out: out}
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("status"),
		readline.PcItem("devices"),
		readline.PcItem("subs"),
		readline.PcItem("observations"),
		readline.PcItem("resources"),
		readline.PcItem("pair"),
		readline.PcItem("unpair"),
		readline.PcItem("observe"),
		readline.PcItem("unobserve"),
		readline.PcItem("notify"),
		readline.PcItem("get"),
		readline.PcItem("reset"),
		readline.PcItem("quit"),
	)
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if !c.Execute(ctx, line) {
			cancel()
			return
		}
	}
}

// Execute runs one command line. It returns false when the console should exit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()

	case "status", "st":
		c.cmdStatus()

	case "devices", "ls":
		c.cmdDevices()

	case "subs":
		c.cmdSubs()

	case "observations", "obs":
		c.cmdObservations()

	case "resources", "res":
		c.cmdResources()

	case "pair":
		c.cmdPair(args)

	case "unpair":
		c.cmdUnpair(args)

	case "observe", "o":
		c.cmdObserve(args)

	case "unobserve":
		c.cmdUnobserve(args)

	case "notify", "n":
		c.cmdNotify(args)

	case "get", "g":
		c.cmdGet(ctx, args)

	case "reset":
		c.cmdReset(args)

	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return false

	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
meshpair Node Commands:
  Tables:
    status                      - Show node status and bridge counters
    devices                     - List paired devices
    subs                        - List devices observing this node
    observations                - List observations this node holds
    resources                   - List the resource table

  Pairing:
    pair <name> <address>       - Queue a pairing candidate
    unpair <name>               - Remove a paired device

  Resources:
    observe <name> <resource>   - Observe a resource on a paired device
    unobserve <token>           - Cancel an observation
    notify <resource> <hex>     - Update a local resource and notify observers
    get <name> <resource>       - Read a resource from a paired device

  General:
    reset confirm               - Factory reset (clears all tables)
    help                        - Show this help
    quit                        - Exit

  Resources can be given by index (2) or path (state).`)
}

func (c *Console) cmdStatus() {
	n := c.node
	stats := n.Bridge().Stats()
	fmt.Fprintf(c.out, "Name:          %s\n", n.Name())
	fmt.Fprintf(c.out, "Devices:       %d/%d\n", n.Directory().Count(), n.Directory().Capacity())
	fmt.Fprintf(c.out, "Subscriptions: %d\n", n.Registry().Count())
	fmt.Fprintf(c.out, "Observations:  %d\n", len(n.Observations().All()))
	fmt.Fprintf(c.out, "Queue:         %d\n", n.Bridge().Len())
	fmt.Fprintf(c.out, "Bridge:        enqueued=%d dropped=%d rejected=%d paired=%d refreshed=%d failed=%d\n",
		stats.Enqueued, stats.Dropped, stats.Rejected, stats.Paired, stats.Refreshed, stats.Failed)
}

func (c *Console) cmdDevices() {
	devices := c.node.Directory().Devices()
	if len(devices) == 0 {
		fmt.Fprintln(c.out, "No paired devices")
		return
	}
	for _, d := range devices {
		addr := "unknown"
		if !d.Address.IsZero() {
			addr = d.Address.String()
		}
		var res []string
		for _, r := range d.Resources {
			if r != ident.NoResource {
				res = append(res, strconv.Itoa(int(r)))
			}
		}
		fmt.Fprintf(c.out, "  [%d] %-31s %-39s resources=[%s]\n", d.Slot, d.Name, addr, strings.Join(res, ","))
	}
}

func (c *Console) cmdSubs() {
	entries := c.node.Registry().Entries()
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "No subscribers")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(c.out, "  [%d] %s at %s\n", e.Slot, e.DeviceName, e.Address)
		for _, u := range e.URIs {
			fmt.Fprintf(c.out, "      uri %d: resource %d token %s\n", u.Slot, u.Resource, u.Token)
		}
	}
}

func (c *Console) cmdObservations() {
	obs := c.node.Observations().All()
	if len(obs) == 0 {
		fmt.Fprintln(c.out, "No observations")
		return
	}
	for _, o := range obs {
		fmt.Fprintf(c.out, "  %s %s resource %d\n", o.Token, o.DeviceName, o.Resource)
	}
}

func (c *Console) cmdResources() {
	for _, r := range c.node.Resources() {
		state := "-"
		if p, ok := c.node.State(r.Index); ok {
			state = hex.EncodeToString(p)
		}
		fmt.Fprintf(c.out, "  %d %-12s %s\n", r.Index, r.Path, state)
	}
}

func (c *Console) cmdPair(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: pair <name> <address>")
		return
	}
	addr, err := ident.ParseAddress(args[1])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid address: %v\n", err)
		return
	}
	if err := c.node.Candidate(args[0], addr); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Queued %s\n", args[0])
}

func (c *Console) cmdUnpair(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: unpair <name>")
		return
	}
	if err := c.node.Unpair(args[0]); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Unpaired %s\n", args[0])
}

func (c *Console) cmdObserve(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: observe <name> <resource>")
		return
	}
	res, err := c.resolveResource(args[1])
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	token, err := c.node.Observe(args[0], res)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Observing %s resource %d (token %s)\n", args[0], res, token)
}

func (c *Console) cmdUnobserve(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: unobserve <token>")
		return
	}
	token, err := ident.ParseToken(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	if err := c.node.Unobserve(token); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Cancelled %s\n", token)
}

func (c *Console) cmdNotify(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: notify <resource> <hex>")
		return
	}
	res, err := c.resolveResource(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	payload, err := hex.DecodeString(args[1])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid payload: %v\n", err)
		return
	}
	count, err := c.node.Notify(res, payload)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Notified %d observer(s)\n", count)
}

func (c *Console) cmdGet(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: get <name> <resource>")
		return
	}
	res, err := c.resolveResource(args[1])
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, GetTimeout)
	defer cancel()

	payload, err := c.node.Get(ctx, args[0], res)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "%s resource %d = %s\n", args[0], res, hex.EncodeToString(payload))
}

func (c *Console) cmdReset(args []string) {
	if len(args) < 1 || args[0] != "confirm" {
		fmt.Fprintln(c.out, "Factory reset clears every table. Run 'reset confirm' to proceed.")
		return
	}
	c.node.FactoryReset()
	fmt.Fprintln(c.out, "Factory reset done")
}

// resolveResource accepts a resource index or path.
func (c *Console) resolveResource(s string) (ident.ResourceIndex, error) {
	for _, r := range c.node.Resources() {
		if r.Path == s || strconv.Itoa(int(r.Index)) == s {
			return r.Index, nil
		}
	}
	return ident.NoResource, fmt.Errorf("%w: %q", node.ErrUnknownResource, s)
}
