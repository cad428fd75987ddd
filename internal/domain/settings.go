package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SettingType discriminates the Setting union.
type SettingType string

const (
	SettingSelect SettingType = "select"
	SettingToggle SettingType = "toggle"
	SettingText   SettingType = "text"
	SettingNumber SettingType = "number"
)

// Setting is one entry of a model's settings schema. The concrete types are
// SelectSetting, ToggleSetting, TextSetting and NumberSetting.
type Setting interface {
	SettingKey() string
	SettingLabel() string
	SettingType() SettingType
	IsRequired() bool
	DefaultValue() any
	// Accepts reports whether v is present, correctly typed, non-empty and
	// inside any declared bounds.
	Accepts(v any) bool
	isSetting()
}

// Option is a selectable value of a SelectSetting.
type Option struct {
	Label string `json:"label" yaml:"label"`
	Value any    `json:"value" yaml:"value"`
}

type SelectSetting struct {
	Key      string
	Label    string
	Default  any
	Options  []Option
	Required bool
}

type ToggleSetting struct {
	Key      string
	Label    string
	Default  bool
	Required bool
}

type TextSetting struct {
	Key       string
	Label     string
	Default   string
	Required  bool
	Multiline bool
}

type NumberSetting struct {
	Key      string
	Label    string
	Default  *float64
	Min      *float64
	Max      *float64
	Required bool
}

func (s SelectSetting) SettingKey() string       { return s.Key }
func (s SelectSetting) SettingLabel() string     { return s.Label }
func (s SelectSetting) SettingType() SettingType { return SettingSelect }
func (s SelectSetting) IsRequired() bool         { return s.Required }
func (s SelectSetting) DefaultValue() any        { return s.Default }
func (SelectSetting) isSetting()                 {}

// Accepts requires v to equal one of the option values. Numbers and their
// string forms compare equal so JSON and form inputs behave the same.
func (s SelectSetting) Accepts(v any) bool {
	if isBlank(v) {
		return false
	}
	if len(s.Options) == 0 {
		return true
	}
	return s.HasValue(v)
}

// HasValue reports whether v matches an option value.
func (s SelectSetting) HasValue(v any) bool {
	for _, opt := range s.Options {
		if ScalarEqual(opt.Value, v) {
			return true
		}
	}
	return false
}

// IsNumeric reports whether every option value is a number.
func (s SelectSetting) IsNumeric() bool {
	if len(s.Options) == 0 {
		return false
	}
	for _, opt := range s.Options {
		switch opt.Value.(type) {
		case int, int32, int64, float32, float64, json.Number:
		default:
			return false
		}
	}
	return true
}

func (s ToggleSetting) SettingKey() string       { return s.Key }
func (s ToggleSetting) SettingLabel() string     { return s.Label }
func (s ToggleSetting) SettingType() SettingType { return SettingToggle }
func (s ToggleSetting) IsRequired() bool         { return s.Required }
func (s ToggleSetting) DefaultValue() any        { return s.Default }
func (ToggleSetting) isSetting()                 {}

func (s ToggleSetting) Accepts(v any) bool {
	_, ok := AsBool(v)
	return ok
}

func (s TextSetting) SettingKey() string       { return s.Key }
func (s TextSetting) SettingLabel() string     { return s.Label }
func (s TextSetting) SettingType() SettingType { return SettingText }
func (s TextSetting) IsRequired() bool         { return s.Required }
func (s TextSetting) DefaultValue() any        { return s.Default }
func (TextSetting) isSetting()                 {}

func (s TextSetting) Accepts(v any) bool {
	str, ok := v.(string)
	return ok && strings.TrimSpace(str) != ""
}

func (s NumberSetting) SettingKey() string       { return s.Key }
func (s NumberSetting) SettingLabel() string     { return s.Label }
func (s NumberSetting) SettingType() SettingType { return SettingNumber }
func (s NumberSetting) IsRequired() bool         { return s.Required }
func (NumberSetting) isSetting()                 {}

func (s NumberSetting) DefaultValue() any {
	if s.Default == nil {
		return nil
	}
	return *s.Default
}

// Accepts requires a number within [Min, Max]. Unset bounds are open.
func (s NumberSetting) Accepts(v any) bool {
	n, ok := AsNumber(v)
	if !ok {
		return false
	}
	if s.Min != nil && n < *s.Min {
		return false
	}
	return s.Max == nil || n <= *s.Max
}

// AsNumber converts numeric values and numeric-looking strings to float64.
func AsNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// AsBool converts booleans and "true"/"false" strings.
func AsBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// ScalarEqual compares two scalars, treating numbers and their string forms
// as equal.
func ScalarEqual(a, b any) bool {
	if an, ok := AsNumber(a); ok {
		if bn, ok := AsNumber(b); ok {
			return an == bn
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
