// Package config loads verdict suite files.
package config

import (
	"os"
	"regexp"
)

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} references in input with
// values from the process environment.
func ExpandEnv(input string) string {
	return ExpandEnvWith(input, os.LookupEnv)
}

// ExpandEnvWith is ExpandEnv with an explicit lookup function.
//
// A variable that is unset or empty takes its default when one is given and
// expands to the empty string otherwise. Missing values surface later, when
// the suite is validated.
func ExpandEnvWith(input string, lookup func(string) (string, bool)) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if value, ok := lookup(groups[1]); ok && value != "" {
			return value
		}
		return groups[2]
	})
}
