package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "WAB"

// Load reads the YAML file at configPath, substitutes ${VAR} references
// from the environment (after loading .env, if present), applies defaults
// and WAB_* overrides, and validates the result.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	if configPath == "" {
		configPath = "config.yaml"
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: configuration file not found: %s", ErrConfig, configPath)
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: configuration file is empty: %s", ErrConfig, configPath)
	}

	expanded, err := SubstituteEnv(raw, os.LookupEnv)
	if err != nil {
		return nil, err
	}

	cfg := NewDefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	SetDefaultsFromStructRecursive(reflect.ValueOf(cfg), "", v)

	v.AutomaticEnv()

	if err := v.ReadConfig(bytes.NewReader(expanded)); err != nil {
		return nil, fmt.Errorf("%w: error parsing config file: %v", ErrConfig, err)
	}

	if !v.InConfig("alerts") {
		return nil, fmt.Errorf("%w: missing required section 'alerts'", ErrConfig)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SetDefaultsFromStructRecursive(v reflect.Value, prefix string, viper *viper.Viper) {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		if !fieldValue.CanInterface() {
			continue
		}

		key := field.Tag.Get("mapstructure")
		if key == "" {
			key = strings.ToLower(field.Name)
		}

		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		switch fieldValue.Kind() {
		case reflect.Struct:
			SetDefaultsFromStructRecursive(fieldValue, fullKey, viper)
		case reflect.Ptr, reflect.Map, reflect.Slice:
			// nil pointers, maps and slices have no default
			if !fieldValue.IsNil() && fieldValue.Kind() != reflect.Ptr {
				viper.SetDefault(fullKey, fieldValue.Interface())
			}
		default:
			viper.SetDefault(fullKey, fieldValue.Interface())
		}
	}
}
