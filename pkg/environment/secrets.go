package environment

import (
	"sort"
	"strings"

	"github.com/nais/promote/pkg/failure"
)

type LookupFunc func(key string) (string, bool)

// ResolveSecrets collects the values of all named variables through lookup, usually os.LookupEnv.
// All missing variables are reported at once.
func ResolveSecrets(names []string, lookup LookupFunc) (map[string]string, error) {
	secrets := make(map[string]string, len(names))
	missing := make([]string, 0)

	for _, name := range names {
		value, ok := lookup(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		secrets[name] = value
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, failure.Errorf(failure.Configuration, "required secret variables are not set: %s", strings.Join(missing, ", "))
	}

	return secrets, nil
}

// MapLookup adapts a static map to a LookupFunc.
func MapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := m[key]
		return value, ok
	}
}
