package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clinimetric-scale-server/internal/domain"
)

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <file>",
		Short: "Print the content hash of every definition in a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scales, err := loadScales(args[0])
			if err != nil {
				return exitError(3, "%v", err)
			}
			for _, scale := range scales {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", scale.ID, domain.ContentHash(scale))
			}
			return nil
		},
	}
}
