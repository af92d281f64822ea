package parse

import (
	"bytes"
	"encoding/json"
	"math"
	"unicode/utf8"
)

// Entry types written by the producer.
const (
	EntryUser         = "user"
	EntryAssistant    = "assistant"
	EntrySystem       = "system"
	EntryProgress     = "progress"
	EntrySnapshot     = "file-history-snapshot"
	entryTypeMissing  = "unknown"
	subtypeCompaction = "compact_boundary"
)

// Record is one decoded log line. Field accessors never fail: absent,
// null or wrongly typed fields read as zero values.
type Record map[string]any

// DecodeLine decodes one line. It reports false for blank lines and for
// anything that is not a JSON object.
func DecodeLine(line []byte) (Record, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, false
	}
	if !utf8.Valid(line) {
		line = bytes.ToValidUTF8(line, []byte("�"))
	}
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil || rec == nil {
		return nil, false
	}
	return rec, true
}

// Type returns the entry type, or "unknown" when the record has none.
func (r Record) Type() string {
	if t := r.Str("type"); t != "" {
		return t
	}
	return entryTypeMissing
}

func (r Record) Get(key string) any {
	return r[key]
}

func (r Record) Str(key string) string {
	return asString(r[key])
}

func (r Record) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}

func (r Record) Int(key string) int64 {
	return asInt(r[key])
}

func (r Record) Obj(key string) Record {
	return asObject(r[key])
}

func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asObject(v any) Record {
	switch m := v.(type) {
	case map[string]any:
		return Record(m)
	case Record:
		return m
	}
	return nil
}

// asInt converts JSON numbers to int64. Null, strings and other shapes
// are zero.
func asInt(v any) int64 {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return int64(f)
		}
	}
	return 0
}

// optInt is asInt for fields where absence must stay distinguishable.
func optInt(v any) *int64 {
	switch v.(type) {
	case float64, int, int64, json.Number:
		n := asInt(v)
		return &n
	}
	return nil
}
