// Package settings loads and stores the helper's JSON settings file.
//
// The file is decoded on top of Defaults: nested objects merge key by key
// and scalars overwrite. Keys this package does not know about are kept
// and written back unchanged on Save.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"dario.cat/mergo"
)

// DefaultFileName is the settings file name used when no path is given.
const DefaultFileName = "liblibai_helper.json"

// ErrMalformed is returned when the settings file is not valid JSON or does
// not match the expected shape.
var ErrMalformed = errors.New("malformed settings file")

// ErrUnknownKey is returned by Set for a name that is not a setting.
var ErrUnknownKey = errors.New("unknown setting")

// UIDefaults are the generation defaults offered to the user.
type UIDefaults struct {
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Steps    int     `json:"steps"`
	CFGScale float64 `json:"cfg_scale"`
	Sampler  string  `json:"sampler"`

	// Extra holds unknown keys found under ui_defaults.
	Extra map[string]json.RawMessage `json:"-"`
}

// Settings is the full settings document.
type Settings struct {
	AccessKey       string     `json:"access_key"`
	SecretKey       string     `json:"secret_key"`
	Proxy           string     `json:"proxy"`
	AutoUpdateCheck bool       `json:"auto_update_check"`
	UpdateInterval  int        `json:"update_interval"`
	SavePath        string     `json:"save_path"`
	DefaultModel    string     `json:"default_model"`
	DefaultWorkflow string     `json:"default_workflow"`
	UIDefaults      UIDefaults `json:"ui_defaults"`

	// Extra holds unknown top-level keys.
	Extra map[string]json.RawMessage `json:"-"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		AutoUpdateCheck: true,
		UpdateInterval:  3600,
		UIDefaults: UIDefaults{
			Width:    512,
			Height:   512,
			Steps:    20,
			CFGScale: 7.0,
			Sampler:  "euler_a",
		},
	}
}

// Configured reports whether both API keys are present.
func (s Settings) Configured() bool {
	return s.AccessKey != "" && s.SecretKey != ""
}

// Merge copies every non-zero field of src onto dst, descending into
// ui_defaults. Zero values in src leave dst untouched, so src is suited to
// partial overrides such as command-line flags.
func Merge(dst *Settings, src Settings) error {
	if err := mergo.Merge(dst, src, mergo.WithOverride); err != nil {
		return fmt.Errorf("merge settings: %w", err)
	}
	return nil
}

// Set assigns value to the setting named key, using the names of the
// settings file. Fields of ui_defaults are addressed as "ui_defaults.width".
// String settings take value as is; other settings parse it as JSON.
func (s *Settings) Set(key, value string) error {
	path := strings.Split(key, ".")
	kind, ok := fieldKind(reflect.TypeOf(Settings{}), path)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	var patch json.RawMessage
	if kind == reflect.String {
		encoded, err := json.Marshal(value)
		if err != nil {
			return err
		}
		patch = encoded
	} else {
		if !json.Valid([]byte(value)) {
			return fmt.Errorf("invalid value for %s: %q", key, value)
		}
		patch = json.RawMessage(value)
	}
	for i := len(path) - 1; i >= 0; i-- {
		wrapped, err := json.Marshal(map[string]json.RawMessage{path[i]: patch})
		if err != nil {
			return err
		}
		patch = wrapped
	}

	// Decoding works on a copy so a rejected value leaves s unchanged.
	updated := *s
	if err := updated.UnmarshalJSON(patch); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*s = updated
	return nil
}

// fieldKind follows path through the JSON names of t and returns the kind
// of the final field. Only leaf fields are settable.
func fieldKind(t reflect.Type, path []string) (reflect.Kind, bool) {
	for i, name := range path {
		field, ok := fieldByJSONName(t, name)
		if !ok {
			return reflect.Invalid, false
		}
		if i == len(path)-1 {
			if field.Type.Kind() == reflect.Struct {
				return reflect.Invalid, false
			}
			return field.Type.Kind(), true
		}
		if field.Type.Kind() != reflect.Struct {
			return reflect.Invalid, false
		}
		t = field.Type
	}
	return reflect.Invalid, false
}

func fieldByJSONName(t reflect.Type, name string) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		tag, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if tag != "" && tag != "-" && tag == name {
			return t.Field(i), true
		}
	}
	return reflect.StructField{}, false
}

type settingsFields Settings

// UnmarshalJSON decodes data on top of the current value of s.
func (s *Settings) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*settingsFields)(s)); err != nil {
		return err
	}
	return collectExtra(data, reflect.TypeOf(Settings{}), &s.Extra)
}

// MarshalJSON encodes s with its unknown keys.
func (s Settings) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(settingsFields(s), s.Extra)
}

type uiDefaultsFields UIDefaults

// UnmarshalJSON decodes data on top of the current value of u.
func (u *UIDefaults) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*uiDefaultsFields)(u)); err != nil {
		return err
	}
	return collectExtra(data, reflect.TypeOf(UIDefaults{}), &u.Extra)
}

// MarshalJSON encodes u with its unknown keys.
func (u UIDefaults) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(uiDefaultsFields(u), u.Extra)
}

func knownKeys(t reflect.Type) map[string]bool {
	keys := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys[name] = true
		}
	}
	return keys
}

func collectExtra(data []byte, t reflect.Type, extra *map[string]json.RawMessage) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	known := knownKeys(t)
	for k, v := range raw {
		if known[k] {
			continue
		}
		if *extra == nil {
			*extra = make(map[string]json.RawMessage)
		}
		(*extra)[k] = v
	}
	return nil
}

func marshalWithExtra(fields any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := marshalRaw(fields)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return data, nil
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return marshalRaw(out)
}

// marshalRaw encodes v without HTML escaping so prompts and paths are
// written as typed.
func marshalRaw(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
