package environment

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/nais/promote/pkg/failure"
)

const (
	DefaultConfigFile = "promote.yaml"
	EnvPrefix         = "PROMOTE"

	environmentsKey = "environments"
)

// Resolver supplies per-environment configuration.
// An empty environment name resolves the base configuration.
type Resolver interface {
	Resolve(environment string) (*Settings, error)
}

// FileResolver resolves environments from a project configuration file, where
// each entry under `environments` overrides keys of the top level configuration.
// Values can be overridden by PROMOTE_* environment variables.
type FileResolver struct {
	base         map[string]any
	environments map[string]map[string]any
}

var _ Resolver = &FileResolver{}

func decoderHook(dc *mapstructure.DecoderConfig) {
	dc.TagName = "json"
	dc.ErrorUnused = true
	dc.WeaklyTypedInput = true
}

func NewFileResolver(path string) (*FileResolver, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		return nil, failure.Errorf(failure.Configuration, "read configuration file: %w", err)
	}

	return newResolver(v.AllSettings())
}

func newResolver(all map[string]any) (*FileResolver, error) {
	r := &FileResolver{
		base:         make(map[string]any),
		environments: make(map[string]map[string]any),
	}

	for key, value := range all {
		if key != environmentsKey {
			r.base[key] = value
			continue
		}
		envs, ok := value.(map[string]any)
		if !ok {
			return nil, failure.Errorf(failure.Configuration, "%s must be a map of environment names to settings", environmentsKey)
		}
		for name, overrides := range envs {
			if overrides == nil {
				r.environments[name] = map[string]any{}
				continue
			}
			m, ok := overrides.(map[string]any)
			if !ok {
				return nil, failure.Errorf(failure.Configuration, "%s.%s must be a map of settings", environmentsKey, name)
			}
			r.environments[name] = m
		}
	}

	return r, nil
}

// Environments returns the names of all explicitly configured environments.
func (r *FileResolver) Environments() []string {
	names := make([]string, 0, len(r.environments))
	for name := range r.environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *FileResolver) Resolve(environment string) (*Settings, error) {
	merged := maps.Clone(r.base)

	if len(environment) > 0 {
		overrides, ok := r.environments[environment]
		if !ok && environment != Staging && environment != Live {
			return nil, failure.Errorf(failure.Configuration, "environment %q is not configured; known environments are %v", environment, r.Environments())
		}
		maps.Copy(merged, overrides)
	}

	settings := &Settings{}
	config := &mapstructure.DecoderConfig{Result: settings}
	decoderHook(config)
	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return nil, err
	}

	err = decoder.Decode(merged)
	if err != nil {
		return nil, failure.Errorf(failure.Configuration, "decode settings for environment %q: %w", environment, err)
	}

	settings.applyDefaults()

	err = settings.Validate()
	if err != nil {
		return nil, fmt.Errorf("environment %q: %w", environment, err)
	}

	return settings, nil
}
