//go:build winsync_debug

package invariant

const fatalDefault = true
