package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/1broseidon/winsync/internal/configure"
	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/ipc"
	"github.com/1broseidon/winsync/internal/windowstate"
)

// clientCommand parses the flags shared by commands that talk to a running
// daemon. A negative return is not an exit code and means parsing succeeded.
func clientCommand(fs *flag.FlagSet, args []string, nargs int) (*ipc.Client, int) {
	instance := fs.String("instance", "", "Daemon instance name (default instance when empty)")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, 0
		}
		return nil, 2
	}
	if fs.NArg() != nargs {
		if nargs == 0 {
			fmt.Fprintf(os.Stderr, "%s takes no arguments\n", fs.Name())
		} else {
			fmt.Fprintf(os.Stderr, "%s takes %d argument(s)\n", fs.Name(), nargs)
		}
		fs.Usage()
		return nil, 2
	}
	client, err := clientFor(*instance)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, 1
	}
	return client, -1
}

func newFlagSet(name, usage, about string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: "+usage)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, about)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	return fs
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runStatus(args []string) int {
	fs := newFlagSet("status", "winsync status [--json] [--requests]", "Show window state and configure backpressure via IPC.")
	jsonOut := fs.Bool("json", false, "Print the full status as JSON")
	showRequests := fs.Bool("requests", false, "List queued configure requests")
	client, code := clientCommand(fs, args, 0)
	if code >= 0 {
		return code
	}

	st, err := client.GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *jsonOut {
		return printJSON(st)
	}

	fmt.Printf("backend:           %s\n", st.Backend)
	fmt.Printf("title:             %s\n", st.Title)
	fmt.Printf("uptime_seconds:    %d\n", st.UptimeSeconds)
	fmt.Printf("applied:           %s\n", st.Applied)
	fmt.Printf("latched:           %s\n", st.Latched)
	if st.Latched.Tiled.Any() {
		fmt.Printf("tiled:             %s\n", strings.Join(st.Latched.Tiled.Names(), ","))
	}
	fmt.Printf("activated:         %v\n", st.Activated)
	fmt.Printf("outstanding:       %d/%d\n", st.Outstanding, st.MaxOutstanding)
	fmt.Printf("last_acked_serial: %d\n", st.LastAckedSerial)
	fmt.Printf("frames_presented:  %d\n", st.FramesPresented)
	fmt.Printf("overlay_surfaces:  %d\n", st.OverlaySurfaces)
	if st.TraceSession != "" {
		fmt.Printf("trace_session:     %s (dropped %d)\n", st.TraceSession, st.TraceDropped)
	}
	if *showRequests {
		for _, r := range st.Requests {
			printRequest(r)
		}
	}
	return 0
}

func printRequest(r configure.Request) {
	serial := "-"
	if r.Serial != configure.NoSerial {
		serial = fmt.Sprint(r.Serial)
	}
	mark := " "
	if r.Applied {
		mark = "*"
	}
	fmt.Printf("%s serial=%s viz_seq=%d %s\n", mark, serial, r.VizSeq, r.State)
}

func runOutputs(args []string) int {
	fs := newFlagSet("outputs", "winsync outputs [--json]", "List outputs known to the daemon's backend.")
	jsonOut := fs.Bool("json", false, "Print outputs as JSON")
	client, code := clientCommand(fs, args, 0)
	if code >= 0 {
		return code
	}

	outs, err := client.GetOutputs()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *jsonOut {
		return printJSON(outs)
	}
	for _, o := range outs {
		fmt.Printf("%d\t%s\t%s\tscale=%.2f\n", o.ID, o.Name, o.Bounds, o.Scale)
	}
	return 0
}

func runResize(args []string) int {
	fs := newFlagSet("resize", "winsync resize [--x N] [--y N] <width> <height>", "Ask the window to change its bounds (DIP).")
	x := fs.Int("x", 0, "Left edge in DIP")
	y := fs.Int("y", 0, "Top edge in DIP")
	client, code := clientCommand(fs, args, 2)
	if code >= 0 {
		return code
	}

	w, errW := strconv.Atoi(fs.Arg(0))
	h, errH := strconv.Atoi(fs.Arg(1))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		fmt.Fprintln(os.Stderr, "width and height must be positive integers")
		return 2
	}
	if err := client.RequestBounds(geometry.Rect{X: *x, Y: *y, Width: w, Height: h}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runState(args []string) int {
	fs := newFlagSet("state", "winsync state <normal|minimized|maximized|fullscreen|tiled>", "Switch the window state from the client side.")
	client, code := clientCommand(fs, args, 1)
	if code >= 0 {
		return code
	}

	kind, err := windowstate.ParseKind(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if err := client.SetWindowState(kind); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runConfigure(args []string) int {
	fs := newFlagSet("configure", "winsync configure [--width N --height N] [--state KIND] [--tiled EDGES]",
		"Inject a compositor configure on the headless backend and print its serial.")
	width := fs.Int("width", 0, "Suggested width in DIP (0: client chooses)")
	height := fs.Int("height", 0, "Suggested height in DIP (0: client chooses)")
	state := fs.String("state", "normal", "Window state announced by the compositor")
	tiled := fs.String("tiled", "", "Comma separated tiled edges: left,right,top,bottom")
	suspended := fs.Bool("suspended", false, "Mark the window as suspended")
	activated := fs.Bool("activated", false, "Mark the window as focused")
	client, code := clientCommand(fs, args, 0)
	if code >= 0 {
		return code
	}

	kind, err := windowstate.ParseKind(*state)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	var edges windowstate.TiledEdges
	if *tiled != "" {
		if edges, err = windowstate.ParseEdges(strings.Split(*tiled, ",")); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}
	if *width < 0 || *height < 0 {
		fmt.Fprintln(os.Stderr, "width and height must not be negative")
		return 2
	}

	serial, err := client.SimulateConfigure(ipc.SimulateConfigurePayload{
		Size:      geometry.Size{Width: *width, Height: *height},
		Kind:      kind,
		Tiled:     edges,
		Suspended: *suspended,
		Activated: *activated,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("serial: %d\n", serial)
	return 0
}

func runLoseProducer(args []string) int {
	fs := newFlagSet("lose-producer", "winsync lose-producer", "Drop pending frames and latch every outstanding configure.")
	client, code := clientCommand(fs, args, 0)
	if code >= 0 {
		return code
	}
	if err := client.LoseProducer(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runReload(args []string) int {
	fs := newFlagSet("reload", "winsync reload", "Reread the daemon's config file and apply what can change live.")
	client, code := clientCommand(fs, args, 0)
	if code >= 0 {
		return code
	}
	if err := client.Reload(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println("reloaded")
	return 0
}
