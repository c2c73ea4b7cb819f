package configutil

import (
	"sort"
	"strings"
)

// Schema lists the keys a free-form settings block may carry.
type Schema struct {
	Required     []string
	Optional     []string
	AllowUnknown bool
}

// SettingsError reports the keys that failed schema validation.
type SettingsError struct {
	Missing []string
	Unknown []string
}

func (e *SettingsError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown: "+strings.Join(e.Unknown, ", "))
	}
	return strings.Join(parts, "; ")
}

// ValidateSettings checks input against schema. Keys match regardless of
// case, underscores or hyphens, so MODEL_NAME, model-name and modelName agree.
// A required key holding a blank string counts as missing.
func ValidateSettings(input map[string]any, schema Schema) error {
	allowed := make(map[string]struct{}, len(schema.Required)+len(schema.Optional))
	for _, k := range schema.Optional {
		allowed[normalizeKey(k)] = struct{}{}
	}
	present := make(map[string]any, len(input))
	errOut := &SettingsError{}
	for k, v := range input {
		nk := normalizeKey(k)
		present[nk] = v
		if _, ok := allowed[nk]; ok || schema.AllowUnknown || containsKey(schema.Required, nk) {
			continue
		}
		errOut.Unknown = append(errOut.Unknown, k)
	}
	for _, k := range schema.Required {
		if v, ok := present[normalizeKey(k)]; !ok || isEmptyValue(v) {
			errOut.Missing = append(errOut.Missing, k)
		}
	}
	if len(errOut.Missing) == 0 && len(errOut.Unknown) == 0 {
		return nil
	}
	sort.Strings(errOut.Missing)
	sort.Strings(errOut.Unknown)
	return errOut
}

func containsKey(keys []string, normalized string) bool {
	for _, k := range keys {
		if normalizeKey(k) == normalized {
			return true
		}
	}
	return false
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
