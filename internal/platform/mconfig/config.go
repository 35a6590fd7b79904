// Package mconfig loads configuration from environment variables, adapted
// from the teacher's common/os.go. Every Yorutsuke binary defines its own
// Config struct with `env:"..."` tags and calls FromEnv to populate it.
package mconfig

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

var localEnvOnce sync.Once

// LoadLocalEnv loads a .env file into the process environment exactly once,
// but only when ENV_NAME=local — production and CI deployments set real
// environment variables and must not be shadowed by a stray .env file.
func LoadLocalEnv() {
	localEnvOnce.Do(func() {
		if os.Getenv("ENV_NAME") != "local" {
			return
		}

		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "mconfig: no .env file loaded: %v\n", err)
		}
	})
}

// GetOrDefault returns the named environment variable, or def if unset/empty.
func GetOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

// GetBoolOrDefault returns the named environment variable parsed as a bool,
// or def if unset/unparseable.
func GetBoolOrDefault(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}

	return b
}

// GetIntOrDefault returns the named environment variable parsed as an int,
// or def if unset/unparseable.
func GetIntOrDefault(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return i
}

// FromEnv populates the fields of the struct pointed to by s from
// environment variables named by each field's `env` tag. Supported field
// kinds: string, bool, and every int/int64 width. Adapted from the
// teacher's SetConfigFromEnvVars — dropped the panic-on-miss path in favor
// of a returned error, since a missing required var during startup is a
// normal, recoverable event for our four binaries to log and exit on.
func FromEnv(s any) error {
	v := reflect.ValueOf(s)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("mconfig: FromEnv requires a pointer to a struct, got %T", s)
	}

	elem := v.Elem()
	t := elem.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		tag, ok := field.Tag.Lookup("env")
		if !ok || tag == "" {
			continue
		}

		raw, present := os.LookupEnv(tag)

		fv := elem.Field(i)
		if !fv.CanSet() {
			continue
		}

		switch fv.Kind() {
		case reflect.String:
			if present {
				fv.SetString(raw)
			} else if def, ok := field.Tag.Lookup("envDefault"); ok {
				fv.SetString(def)
			}
		case reflect.Bool:
			if present {
				b, err := strconv.ParseBool(raw)
				if err != nil {
					return fmt.Errorf("mconfig: field %s: %w", field.Name, err)
				}

				fv.SetBool(b)
			} else if def, ok := field.Tag.Lookup("envDefault"); ok {
				b, err := strconv.ParseBool(def)
				if err == nil {
					fv.SetBool(b)
				}
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			raw, present := raw, present
			if !present {
				if def, ok := field.Tag.Lookup("envDefault"); ok {
					raw, present = def, true
				}
			}

			if present {
				n, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					return fmt.Errorf("mconfig: field %s: %w", field.Name, err)
				}

				fv.SetInt(n)
			}
		default:
			continue
		}
	}

	return nil
}
