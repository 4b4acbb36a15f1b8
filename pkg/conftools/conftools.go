package conftools

import (
	"fmt"
	"sort"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const Redacted = "***REDACTED***"

// Format returns a human-readable printout of all configuration options, except secret stuff.
// Options that were left empty are not printed.
func Format(flags *flag.FlagSet, disallowedKeys []string) ([]string, error) {
	v := viper.New()
	err := v.BindPFlags(flags)
	if err != nil {
		return nil, err
	}

	ok := func(key string) bool {
		for _, forbiddenKey := range disallowedKeys {
			if forbiddenKey == key {
				return false
			}
		}
		return true
	}

	var keys sort.StringSlice = v.AllKeys()

	printed := make([]string, 0)

	keys.Sort()
	for _, key := range keys {
		value := v.GetString(key)
		switch {
		case len(value) == 0:
			continue
		case ok(key):
			printed = append(printed, fmt.Sprintf("%s: %s", key, value))
		default:
			printed = append(printed, fmt.Sprintf("%s: %s", key, Redacted))
		}
	}

	return printed, nil
}
