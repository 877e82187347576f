// Package source provides parsers for upstream biomedical data sources.
//
// Each parser converts raw records (XML payloads, tabular line records,
// JSON-like mappings) into typed source records. Parsers are pure: they
// perform no I/O beyond the supplied payload, skip records they cannot
// understand, and report per-record validation issues instead of failing
// a whole batch.
package source

import (
	"log/slog"
	"sort"
	"strconv"
)

// Name identifies a built-in upstream source.
const (
	NameClinVar = "clinvar"
	NamePubMed  = "pubmed"
	NameHPO     = "hpo"
	NameUniProt = "uniprot"
)

// RawRecord is a schema-loose upstream record as delivered by an ingestor.
//
// Upstream payloads carry optional fields and multiple identifier layouts, so
// records are decoded into a generic mapping first and lifted into typed
// source records by the parsers. Parsers constructed with a logger report
// unknown keys at debug level; with a nil logger they are not reported.
type RawRecord map[string]any

// Str returns the string value under key, or "" when absent or non-string.
func (r RawRecord) Str(key string) string {
	if value, ok := r[key].(string); ok {
		return value
	}

	return ""
}

// Int returns the integer value under key. Accepts int, int64, float64, and
// numeric strings; the second return reports whether a value was present.
func (r RawRecord) Int(key string) (int, bool) {
	switch value := r[key].(type) {
	case int:
		return value, true
	case int64:
		return int(value), true
	case float64:
		return int(value), true
	case string:
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed, true
		}
	}

	return 0, false
}

// Bool returns the bool value under key, or false when absent.
func (r RawRecord) Bool(key string) bool {
	value, _ := r[key].(bool)

	return value
}

// Strings returns the string slice under key, tolerating []any payloads.
func (r RawRecord) Strings(key string) []string {
	switch value := r[key].(type) {
	case []string:
		return append([]string(nil), value...)
	case []any:
		result := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}

		return result
	}

	return nil
}

// Map returns the nested mapping under key, or nil when absent.
func (r RawRecord) Map(key string) RawRecord {
	switch value := r[key].(type) {
	case RawRecord:
		return value
	case map[string]any:
		return RawRecord(value)
	}

	return nil
}

// Maps returns the slice of nested mappings under key.
func (r RawRecord) Maps(key string) []RawRecord {
	raw, ok := r[key].([]any)
	if !ok {
		if typed, ok := r[key].([]map[string]any); ok {
			result := make([]RawRecord, 0, len(typed))
			for _, item := range typed {
				result = append(result, RawRecord(item))
			}

			return result
		}

		return nil
	}

	result := make([]RawRecord, 0, len(raw))

	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			result = append(result, RawRecord(m))
		}
	}

	return result
}

// logUnknownKeys reports record keys outside the parser's known set at debug
// level. Parsers must not silently drop unknown fields.
func logUnknownKeys(logger *slog.Logger, sourceName string, record RawRecord, known map[string]bool) {
	if logger == nil {
		return
	}

	var unknown []string

	for key := range record {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}

	if len(unknown) == 0 {
		return
	}

	sort.Strings(unknown)
	logger.Debug("record carries unknown keys", "source", sourceName, "keys", unknown)
}
