package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

var durationType = reflect.TypeOf(time.Duration(0))

// secondsToDurationHook decodes numbers as seconds, matching the *_seconds keys of
// sparkmagic config.json files. Strings may be numbers or Go durations ("1.5", "250ms").
func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType {
			return data, nil
		}

		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case float64:
			return seconds(v), nil
		case float32:
			return seconds(float64(v)), nil
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return nil, err
			}
			return seconds(f), nil
		case string:
			s := strings.TrimSpace(v)
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return seconds(f), nil
			}
			d, err := time.ParseDuration(s)
			if err != nil {
				return nil, fmt.Errorf("invalid duration %q: %w", v, err)
			}
			return d, nil
		}
		return data, nil
	}
}

// stringToMapHook accepts JSON objects in string form, which is how maps arrive
// from environment variables (LIVY_CUSTOM_HEADERS='{"X-Requested-By":"admin"}').
func stringToMapHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Map {
			return data, nil
		}
		raw := strings.TrimSpace(reflect.ValueOf(data).String())
		if raw == "" {
			return map[string]any{}, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fmt.Errorf("expected a JSON object: %w", err)
		}
		return out, nil
	}
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
