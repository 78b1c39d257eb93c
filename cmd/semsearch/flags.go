package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// requireFlags rejects required flags that were passed with an empty value.
// Cobra already rejects flags that are missing altogether.
func requireFlags(cmd *cobra.Command, names ...string) error {
	for _, name := range names {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			return fmt.Errorf("unknown flag %q", name)
		}
		value := strings.TrimSpace(f.Value.String())
		if value == "" || (f.Value.Type() == "int" && value == "0") {
			return fmt.Errorf("flag --%s must not be empty", name)
		}
	}
	return nil
}
