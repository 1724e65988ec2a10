package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"go-attendance-server/internal/gallery"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <gallery-file>",
	Short: "Print the identities and vector stats of a gallery file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := gallery.Load(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Gallery: %s\n", args[0])
		fmt.Printf("Identities: %d\n", g.Len())
		fmt.Printf("Dimension: %d\n", g.Dim())
		for _, e := range g.Entries {
			v := make([]float64, len(e.Vector))
			for i, x := range e.Vector {
				v[i] = float64(x)
			}
			fmt.Printf("  %-16s norm=%.4f min=%.4f max=%.4f\n",
				e.RegisterNumber, floats.Norm(v, 2), floats.Min(v), floats.Max(v))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
