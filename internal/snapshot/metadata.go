// Package snapshot defines the metadata envelope that travels through the
// broker from Build through Validate, and the variant/filename grammar
// used to locate artifacts on disk and in object storage.
//
// Field layout and JSON key aliases are grounded on the original
// Pydantic models (snapshot.py): the struct field names are idiomatic Go,
// the `json` tags are the canonical human-readable keys both producers
// and consumers must use on the wire.
package snapshot

import (
	"encoding/json"
	"time"
)

// Validation carries the outcome of the two-way validation performed by
// the Validate worker. Success starts false and is only ever set true by
// Validate itself, never forged upstream.
type Validation struct {
	Success        bool   `json:"Success"`
	ForestVersion  string `json:"Forest version,omitempty"`
	LotusVersion   string `json:"Lotus version,omitempty"`
	ValidationDate string `json:"Validation date,omitempty"`
}

// BuildInformation carries the facts Build knows about the export: where
// it landed on disk, which epoch it targets, and when it ran.
// BuildTimestamp is the operator-visible correlation id used to thread
// chat notifications about the same artifact across pipeline stages.
type BuildInformation struct {
	Epoch          int64      `json:"Epoch"`
	EpochDate      string     `json:"Epoch date"`
	BuildPath      string     `json:"Build path"`
	BuildTimestamp string     `json:"Build timestamp"`
	BuildDate      string     `json:"Build date"`
	Validation     Validation `json:"Validation"`
}

// Snapshot carries the facts the chain tool reports about the exported
// artifact itself, harvested from its archive-metadata/archive-info
// reports (see internal/chaintool.ParseArchiveReport).
type Snapshot struct {
	SnapshotVersion          string   `json:"Snapshot version,omitempty"`
	HeadTipset               []string `json:"Head Tipset,omitempty"`
	F3Data                   bool     `json:"F3 data,omitempty"`
	F3SnapshotVersion        string   `json:"F3 snapshot version,omitempty"`
	F3SnapshotFirstInstance  int64    `json:"F3 snapshot first instance,omitempty"`
	F3SnapshotLastInstance   int64    `json:"F3 snapshot last instance,omitempty"`
	CARFormat                string   `json:"CAR format,omitempty"`
	Network                  string   `json:"Network"`
	Epoch                    int64    `json:"Epoch"`
	StateRoots               int64    `json:"State-roots"`
	Sha256                   string   `json:"Sha256,omitempty"`
	MessagesSets             int64    `json:"Messages sets,omitempty"`
	IndexSize                int64    `json:"Index size,omitempty"`
}

// Metadata is the full envelope that accompanies an artifact from Build
// through Validate. It is the message body for every stream downstream
// of Build (§3, invariant 1 of SPEC_FULL.md).
type Metadata struct {
	Snapshot         Snapshot         `json:"Snapshot"`
	BuildInformation BuildInformation `json:"Build Information"`
}

// FromJSON deserializes a Metadata envelope from its canonical JSON form.
func FromJSON(data []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

// ToJSON serializes a Metadata envelope to its canonical JSON form. It is
// the inverse of FromJSON for canonical output: for any envelope m,
// FromJSON(ToJSON(m)) re-serializes to the same bytes as ToJSON(m). Input
// bytes that were not produced by ToJSON (other whitespace, unknown keys)
// are not reproduced.
func (m Metadata) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SecondsPerEpoch is the Filecoin chain's fixed epoch duration.
const SecondsPerEpoch = 30

// EpochDate formats an epoch as the UTC calendar date used in filenames,
// given the network's genesis timestamp and seconds-per-epoch constant.
func EpochDate(epoch int64, genesisUnix, secondsPerEpoch int64) string {
	ts := genesisUnix + epoch*secondsPerEpoch
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}
