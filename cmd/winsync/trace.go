package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/1broseidon/winsync/internal/trace"
)

func printTraceUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  winsync trace sessions [--path PATH] [--json]")
	fmt.Fprintln(os.Stderr, "  winsync trace dump [--path PATH] [--limit N] [--json] [session-id]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "dump prints the newest session when no id is given.")
}

func runTrace(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printTraceUsage()
		return 2
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path used to locate the journal")
	jsonOut := fs.Bool("json", false, "Print JSON")
	limit := fs.Int("limit", 0, "Maximum number of events (0: all)")

	switch args[0] {
	case "sessions", "dump":
	default:
		fmt.Fprintf(os.Stderr, "Unknown trace subcommand: %s\n", args[0])
		return 2
	}
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	res, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	dbPath, err := res.Config.TracePath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "no trace journal at %s\n", dbPath)
		return 1
	}
	db, err := trace.Open(dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sessions, err := trace.Sessions(ctx, db)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if args[0] == "sessions" {
		if *jsonOut {
			return printJSON(sessions)
		}
		for _, s := range sessions {
			fmt.Printf("%s\t%s\t%s\t%d events\t%s\n",
				s.ID, s.StartedAt.Format(time.RFC3339), s.Backend, s.Events, s.Title)
		}
		return 0
	}

	id := fs.Arg(0)
	if id == "" {
		if len(sessions) == 0 {
			fmt.Fprintln(os.Stderr, "no sessions recorded")
			return 1
		}
		id = sessions[0].ID
	}
	events, err := trace.Events(ctx, db, id, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *jsonOut {
		return printJSON(events)
	}
	for _, ev := range events {
		fmt.Printf("%s  %-14s serial=%d viz_seq=%d %s\n",
			ev.At.Format("15:04:05.000"), ev.Kind, ev.Serial, ev.VizSeq, ev.Detail)
	}
	return 0
}
