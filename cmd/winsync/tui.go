package main

import (
	"fmt"
	"os"

	"github.com/1broseidon/winsync/internal/tui"
)

func runTUI(args []string) int {
	fs := newFlagSet("tui", "winsync tui [--path PATH] [--instance NAME]",
		"Interactive dashboard for a running daemon.\n\n"+
			"Keybindings:\n"+
			"  tab, 1-4   Switch tabs\n"+
			"  n/z/m/f/t  Request normal, minimized, maximized, fullscreen, tiled (Window tab)\n"+
			"  x          Drop the frame producer (Window tab)\n"+
			"  e          Edit settings (Config tab)\n"+
			"  ctrl+s     Save config and reload the daemon\n"+
			"  q, ctrl+c  Quit")
	path := fs.String("path", "", "Config file path (default: ~/.config/winsync/config.yaml)")
	client, code := clientCommand(fs, args, 0)
	if code >= 0 {
		return code
	}

	if err := tui.Run(*path, client); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
