// Package progress persists the set of note IDs already enriched, so an
// interrupted run can resume without re-processing notes. The file is a plain
// JSON array of integers, replaced wholesale on every save.
package progress

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
)

// Set is a completion set of note identifiers.
type Set map[int64]struct{}

// Contains reports whether id is in the set.
func (s Set) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set.
func (s Set) Add(id int64) {
	s[id] = struct{}{}
}

// IDs returns the members in ascending order.
func (s Set) IDs() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Load reads a completion set from path. A missing, unreadable, or malformed
// file degrades to an empty set with a warning; resumability is an
// optimization, never a reason to abort a run.
func Load(path string, logger *slog.Logger) Set {
	if logger == nil {
		logger = slog.Default()
	}

	set := make(Set)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("could not read progress file, starting fresh",
				"path", path, "error", err)
		}
		return set
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		logger.Warn("progress file is not a JSON list of IDs, starting fresh",
			"path", path, "error", err)
		return set
	}

	for _, id := range ids {
		set.Add(id)
	}
	return set
}

// Save writes the full set to path, replacing any previous contents. The
// caller treats failure as best-effort: the in-memory set stays valid and
// processing continues without durability for this write.
func Save(path string, set Set) error {
	data, err := json.Marshal(set.IDs())
	if err != nil {
		return fmt.Errorf("failed to serialize progress set: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write progress file %s: %w", path, err)
	}
	return nil
}
