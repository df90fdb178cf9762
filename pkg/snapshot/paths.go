package snapshot

import (
	"path/filepath"
	"strconv"
	"strings"
)

const (
	snapshotExt = ".json"
	statsSuffix = ".stats"
)

// Path returns the snapshot file of a ledger inside dir: <dir>/<index>.json.
func Path(dir string, index uint64) string {
	return filepath.Join(dir, strconv.FormatUint(index, 10)+snapshotExt)
}

// StatsPath returns the statistics file that sits next to a snapshot file,
// with ".stats" inserted before the extension.
func StatsPath(snapshotPath string) string {
	ext := filepath.Ext(snapshotPath)
	return strings.TrimSuffix(snapshotPath, ext) + statsSuffix + ext
}

// ParseIndex extracts the ledger index from an argument such as "32570", "32570.json"
// or a path to a snapshot or statistics file.
func ParseIndex(arg string) (uint64, error) {
	base := filepath.Base(strings.TrimSpace(arg))
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return strconv.ParseUint(base, 10, 64)
}

// IsStatsFile reports whether name is a statistics file rather than a snapshot.
func IsStatsFile(name string) bool {
	return strings.HasSuffix(name, statsSuffix+snapshotExt)
}
