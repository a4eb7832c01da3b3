package snapshot

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

// Variant is the tagged union of the four snapshot kinds the Build worker
// can produce, each with a fixed depth/state-roots/folder/routing policy
// (§3 of SPEC_FULL.md).
type Variant string

const (
	VariantLite      Variant = "lite"
	VariantDiff      Variant = "diff"
	VariantLatestV1  Variant = "latest-v1"
	VariantLatestV2  Variant = "latest-v2"
)

// Policy describes the fixed parameters governing one Variant.
type Policy struct {
	Depth      int64
	StateRoots int64
	Folder     string
	// Exchange is the broker stream this variant's envelope is published to.
	Exchange string
}

var policies = map[Variant]Policy{
	VariantLite:     {Depth: 30000, StateRoots: 900, Folder: "lite", Exchange: "snapshot"},
	VariantDiff:     {Depth: 3000, StateRoots: 3000, Folder: "diff", Exchange: "snapshot-diff"},
	VariantLatestV1: {Depth: 2000, StateRoots: 2000, Folder: "latest", Exchange: "snapshot-latest"},
	VariantLatestV2: {Depth: 2000, StateRoots: 2000, Folder: "latest-v2", Exchange: "snapshot-latest"},
}

// PolicyFor returns the fixed parameters for a Variant. The second return
// value is false for an unrecognized variant.
func PolicyFor(v Variant) (Policy, bool) {
	p, ok := policies[v]
	return p, ok
}

// heightPattern matches the canonical "height_<digits>" token embedded in
// every snapshot filename (§3/§6 of SPEC_FULL.md: "Parsing: /height_(\d+)/
// on basename, default on miss").
var heightPattern = regexp.MustCompile(`height_(\d+)`)

// ParseEpochFromPath extracts the epoch embedded in a snapshot path's
// basename. The second return value is false if no height_<digits> token
// is present, in which case callers should fall back to a known epoch
// rather than guess.
func ParseEpochFromPath(path string) (int64, bool) {
	m := heightPattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0, false
	}
	epoch, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return epoch, true
}

// Filename builds the canonical basename for a variant at a given epoch
// and calendar date, per the grammar in §3 of SPEC_FULL.md. For VariantDiff
// the filename additionally embeds the delta's depth as a "+<depth>"
// suffix on the height (e.g. height_27000+3000).
func Filename(v Variant, network, date string, epoch int64) string {
	switch v {
	case VariantDiff:
		return fmt.Sprintf("forest_diff_%s_%s_height_%d+%d.forest.car.zst", network, date, epoch, policies[v].Depth)
	default:
		return fmt.Sprintf("forest_snapshot_%s_%s_height_%d.forest.car.zst", network, date, epoch)
	}
}

// VariantForFolder is the inverse of PolicyFor's Folder field: given a
// staging-folder basename (as found directly above a snapshot's basename
// on disk), it returns which Variant produced it. Used by the Upload
// worker to recover bucket/key routing from a build path alone.
func VariantForFolder(folder string) (Variant, bool) {
	for v, p := range policies {
		if p.Folder == folder {
			return v, true
		}
	}
	return "", false
}

// RoundDown rounds an epoch down to the nearest multiple of step: the
// batch size for Compute's cursor and the variant's depth for Build's
// cursors (§4.2/§4.3). A non-positive step returns epoch unchanged.
func RoundDown(epoch, step int64) int64 {
	if step <= 0 {
		return epoch
	}
	return (epoch / step) * step
}
