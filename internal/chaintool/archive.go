package chaintool

import (
	"strconv"
	"strings"

	"github.com/filecoin-project/forest-snapshot-pipeline/internal/snapshot"
)

// ParseArchiveReport parses the "key: value" report format emitted by the
// chain tool's `archive metadata` and `archive info` subcommands into a
// flat map. A line that is indented (begins with whitespace) and does not
// itself contain a "key:" is treated as a continuation of the previous
// key's value, joined with a single space — grounded on the original
// implementation's gather_archive_metadata parser.
func ParseArchiveReport(report string) map[string]string {
	out := make(map[string]string)
	var lastKey string

	for _, line := range strings.Split(report, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		indented := len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
		trimmed := strings.TrimSpace(line)

		if key, value, ok := splitKeyValue(trimmed); ok && !indented {
			out[key] = value
			lastKey = key
			continue
		}

		if indented && lastKey != "" {
			out[lastKey] = strings.TrimSpace(out[lastKey] + " " + trimmed)
			continue
		}

		if key, value, ok := splitKeyValue(trimmed); ok {
			out[key] = value
			lastKey = key
		}
	}

	return out
}

func splitKeyValue(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

// MergeIntoSnapshot projects a parsed archive report into a
// snapshot.Snapshot, matching the report's own field names (as emitted
// by `archive metadata`/`archive info`) to the canonical struct fields.
// Unknown keys are ignored; missing numeric keys default to zero.
func MergeIntoSnapshot(report map[string]string, s *snapshot.Snapshot) {
	if v, ok := report["CAR format"]; ok {
		s.CARFormat = v
	}
	if v, ok := report["Snapshot version"]; ok {
		s.SnapshotVersion = v
	}
	if v, ok := report["Network"]; ok {
		s.Network = v
	}
	if v, ok := report["Head tipset"]; ok {
		s.HeadTipset = strings.Fields(v)
	}
	if v, ok := report["Epoch"]; ok {
		s.Epoch = parseInt64(v)
	}
	if v, ok := report["State-roots"]; ok {
		s.StateRoots = parseInt64(v)
	}
	if v, ok := report["Messages sets"]; ok {
		s.MessagesSets = parseInt64(v)
	}
	if v, ok := report["Index size"]; ok {
		s.IndexSize = parseInt64(v)
	}
	if v, ok := report["Sha256"]; ok {
		s.Sha256 = v
	}
	if v, ok := report["F3 data"]; ok {
		s.F3Data = strings.EqualFold(v, "true")
	}
	if v, ok := report["F3 snapshot version"]; ok {
		s.F3SnapshotVersion = v
	}
	if v, ok := report["F3 snapshot first instance"]; ok {
		s.F3SnapshotFirstInstance = parseInt64(v)
	}
	if v, ok := report["F3 snapshot last instance"]; ok {
		s.F3SnapshotLastInstance = parseInt64(v)
	}
}

func parseInt64(s string) int64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
