package configutil

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// DecodeSettings fills out from a free-form settings block. Keys are matched
// with normalizeKey. String values are trimmed, then weakly converted to the
// field type; durations accept "30s" and slices accept "a,b".
func DecodeSettings(input map[string]any, out any) error {
	if len(input) == 0 {
		return nil
	}
	cfg := &mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		MatchName:        func(key, field string) bool { return normalizeKey(key) == normalizeKey(field) },
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			trimStrings,
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}
	dec, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return fmt.Errorf("settings decoder: %w", err)
	}
	return dec.Decode(input)
}

func trimStrings(from, _ reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	s, ok := data.(string)
	if !ok {
		return data, nil
	}
	return strings.TrimSpace(s), nil
}

// BoolValue dereferences an optional flag, using fallback when unset.
func BoolValue(value *bool, fallback bool) bool {
	if value != nil {
		return *value
	}
	return fallback
}

// normalizeKey folds case and drops '_' and '-'.
func normalizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || r == '-' {
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(key)))
}
