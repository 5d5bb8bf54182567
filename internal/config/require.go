package config

import (
	"fmt"
	"slices"
	"strings"
)

// requireAll reports every blank variable in vars, sorted by name.
func requireAll(vars map[string]string) error {
	var missing []string
	for name, value := range vars {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("missing required variables: %s", strings.Join(missing, ", "))
}
