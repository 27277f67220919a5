package task

import (
	"fmt"
	"maps"

	"github.com/go-viper/mapstructure/v2"
)

// Settings is the flat key/value configuration of one task
type Settings map[string]any

// SettingsProvider resolves settings by task id
type SettingsProvider interface {
	TaskSettings(taskID string) map[string]any
}

// StaticSettings serves settings from a fixed map keyed by task id
type StaticSettings map[string]map[string]any

func (s StaticSettings) TaskSettings(taskID string) map[string]any {
	return s[taskID]
}

func resolveSettings(p SettingsProvider, taskID string) Settings {
	if p == nil {
		return Settings{}
	}

	values := p.TaskSettings(taskID)
	if values == nil {
		return Settings{}
	}

	return Settings(maps.Clone(values))
}

// Decode fills out from the settings. Strings convert to numbers, booleans
// and durations ("250ms") where the target field needs it.
func (s Settings) Decode(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create settings decoder: %w", err)
	}

	if err := decoder.Decode(map[string]any(s)); err != nil {
		return fmt.Errorf("failed to decode task settings: %w", err)
	}

	return nil
}
