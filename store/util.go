package store

import "os"

// writeWholeFile writes raw as the complete contents of target,
// creating it if necessary. Used by memory-backed RenameTo, which must
// copy rather than move, per spec.md §4.B.
func writeWholeFile(target string, raw []byte) error {
	return os.WriteFile(target, raw, 0o600)
}
