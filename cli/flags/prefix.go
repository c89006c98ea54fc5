package flags

import (
	"slices"
	"strings"
)

// KdicePrefix is the prefix of the environment variables of every flag.
const KdicePrefix = "KDICE"

// Prefix is joined with a flag name to form its environment variable.
type Prefix []string

func (prefix Prefix) EnvVar(name string) string {
	name = strings.Join(append(slices.Clip(prefix), name), "_")

	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

func (prefix Prefix) EnvVars(names ...string) []string {
	var envVars = make([]string, len(names))

	for i := range names {
		envVars[i] = prefix.EnvVar(names[i])
	}

	return envVars
}
