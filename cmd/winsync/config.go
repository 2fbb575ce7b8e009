package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/1broseidon/winsync/internal/config"
)

func printConfigUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  winsync config validate [--path PATH]")
	fmt.Fprintln(os.Stderr, "  winsync config print [--path PATH] [--defaults]")
	fmt.Fprintln(os.Stderr, "  winsync config explain [--path PATH] [yaml.path]")
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printConfigUsage()
		return 2
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/winsync/config.yaml)")

	switch args[0] {
	case "validate":
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("config: ok (%s)\n", res.Path)
		return 0

	case "print":
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			res, err := loadConfig(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			cfg = res.Config
		}
		data, err := cfg.Marshal()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	case "explain":
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		query := fs.Arg(0)
		lines := res.Explain()
		if query == "" {
			if len(lines) == 0 {
				fmt.Println("all values are defaults")
			}
			for _, line := range lines {
				fmt.Println(line)
			}
			return 0
		}

		src, ok := res.Sources[query]
		if !ok {
			src = config.Source{Kind: config.SourceDefault}
		}
		fmt.Printf("path: %s\n", query)
		fmt.Printf("source: %s\n", src)
		for _, line := range lines {
			if key, _, _ := strings.Cut(line, "\t"); strings.HasPrefix(key, query+".") {
				fmt.Printf("  %s\n", line)
			}
		}
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}
