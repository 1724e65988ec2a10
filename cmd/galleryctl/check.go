package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"go-attendance-server/internal/gallery"
)

var checkCmd = &cobra.Command{
	Use:   "check <gallery-file>",
	Short: "Validate a gallery file's structure and vectors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Load already rejects malformed JSON, empty keys, and mixed
		// dimensions; the checks below catch vectors that parse but cannot
		// score.
		g, err := gallery.Load(args[0])
		if err != nil {
			return err
		}
		if g.Empty() {
			return fmt.Errorf("%s: gallery has no identities", args[0])
		}

		for _, e := range g.Entries {
			allZero := true
			for _, v := range e.Vector {
				if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
					return fmt.Errorf("%s: entry %q has a non-finite component", args[0], e.RegisterNumber)
				}
				if v != 0 {
					allZero = false
				}
			}
			if allZero {
				return fmt.Errorf("%s: entry %q is all zeros", args[0], e.RegisterNumber)
			}
		}

		fmt.Printf("✅ %s: %d identities, dimension %d\n", args[0], g.Len(), g.Dim())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
