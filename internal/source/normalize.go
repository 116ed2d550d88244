package source

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/nik-maltcev/datatrace/internal/model"
)

// flatten converts one upstream record (an arbitrary key/value object) into
// NormalizedRecords, one per key. Keys are emitted in sorted order so that
// identical payloads always normalize to identical record lists. Keys named
// in skip (e.g. the grouping field itself) are omitted.
func flatten(sourceID, database string, index int, fields map[string]any, skip ...string) []model.NormalizedRecord {
	if database == "" {
		database = model.UnknownDatabase
	}

	skipped := make(map[string]struct{}, len(skip))
	for _, k := range skip {
		skipped[k] = struct{}{}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if _, ok := skipped[k]; ok {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([]model.NormalizedRecord, 0, len(keys))
	for _, k := range keys {
		v := stringify(fields[k])
		if v == "" {
			continue
		}
		records = append(records, model.NormalizedRecord{
			Field:          k,
			Value:          v,
			Source:         sourceID,
			SourceDatabase: database,
			RecordIndex:    index,
		})
	}
	return records
}

// stringify renders a decoded JSON value as a flat string. Nested
// structures are re-encoded as compact JSON rather than dropped.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		// JSON numbers decode as float64; keep integers clean.
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
