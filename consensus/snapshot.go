// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package consensus implements the Consensus Publisher and Aggregator
// (spec.md §4.7, §4.8): canonical snapshot serialization, content-store
// round-tripping, and stake-weighted aggregation across peer validators.
package consensus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundtypes"
)

// CanonicalSnapshotBytes serializes snap with stable key ordering and fixed
// 6-decimal float formatting, so the content id the store derives from it
// is identical across validators that hold the same data. encoding/json
// orders integer map keys as strings ("107" before "59") and writes floats
// in shortest form rather than with 6 fixed decimals, so the encoder is
// hand-written rather than a json.Marshal call.
func CanonicalSnapshotBytes(snap roundtypes.ConsensusSnapshot) []byte {
	var buf bytes.Buffer
	buf.WriteString("{")
	buf.WriteString(`"schema_version":`)
	fmt.Fprintf(&buf, "%d", snap.SchemaVersion)
	buf.WriteString(`,"round_number":`)
	fmt.Fprintf(&buf, "%d", snap.RoundNumber)
	buf.WriteString(`,"validator_uid":`)
	fmt.Fprintf(&buf, "%d", snap.ValidatorUID)
	buf.WriteString(`,"validator_hotkey":`)
	writeJSONString(&buf, snap.ValidatorHotkey)
	buf.WriteString(`,"epoch_start":`)
	writeDecimal(&buf, snap.EpochStart)
	buf.WriteString(`,"epoch_end":`)
	writeDecimal(&buf, snap.EpochEnd)
	buf.WriteString(`,"season_number":`)
	fmt.Fprintf(&buf, "%d", snap.SeasonNumber)
	buf.WriteString(`,"tasks_completed":`)
	fmt.Fprintf(&buf, "%d", snap.TasksCompleted)
	buf.WriteString(`,"scores":{`)

	uids := make([]int, 0, len(snap.Scores))
	for uid := range snap.Scores {
		uids = append(uids, uid)
	}
	sort.Ints(uids)
	for i, uid := range uids {
		if i > 0 {
			buf.WriteString(",")
		}
		fmt.Fprintf(&buf, `"%d":`, uid)
		writeDecimal(&buf, snap.Scores[uid])
	}
	buf.WriteString("}}")
	return buf.Bytes()
}

func writeDecimal(buf *bytes.Buffer, v float64) {
	fmt.Fprintf(buf, "%.6f", v)
}

func writeJSONString(buf *bytes.Buffer, s string) {
	buf.WriteString(`"`)
	for _, r := range s {
		switch r {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		default:
			buf.WriteRune(r)
		}
	}
	buf.WriteString(`"`)
}

// ParseCanonicalSnapshot deserializes bytes produced by
// CanonicalSnapshotBytes. It uses encoding/json for parsing (only the
// serialization direction needs to be hand-rolled for determinism; Go's
// decoder does not care about source key order).
func ParseCanonicalSnapshot(data []byte) (roundtypes.ConsensusSnapshot, error) {
	var wire struct {
		SchemaVersion   int             `json:"schema_version"`
		RoundNumber     int64           `json:"round_number"`
		ValidatorUID    int             `json:"validator_uid"`
		ValidatorHotkey string          `json:"validator_hotkey"`
		EpochStart      float64         `json:"epoch_start"`
		EpochEnd        float64         `json:"epoch_end"`
		SeasonNumber    int             `json:"season_number"`
		TasksCompleted  int             `json:"tasks_completed"`
		Scores          map[int]float64 `json:"scores"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return roundtypes.ConsensusSnapshot{}, err
	}
	return roundtypes.ConsensusSnapshot{
		SchemaVersion:   wire.SchemaVersion,
		RoundNumber:     wire.RoundNumber,
		ValidatorUID:    wire.ValidatorUID,
		ValidatorHotkey: wire.ValidatorHotkey,
		EpochStart:      wire.EpochStart,
		EpochEnd:        wire.EpochEnd,
		SeasonNumber:    wire.SeasonNumber,
		TasksCompleted:  wire.TasksCompleted,
		Scores:          wire.Scores,
	}, nil
}
