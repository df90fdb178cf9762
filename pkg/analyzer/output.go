package analyzer

import (
	"encoding/json"
	"fmt"

	"github.com/xrplstats/richlist/pkg/snapshot"
)

// WriteFile writes the statistics document to path as indented JSON, in one piece.
func WriteFile(path string, stats *Stats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("encode statistics: %w", err)
	}
	return snapshot.WriteFileAtomic(path, append(data, '\n'))
}
