package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HatiCode/fdbwatch/pkg/index"
)

func (a *app) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Describe the FDB installation behind the index (fdb-info --all)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := a.openIndex()
			if err != nil {
				return err
			}
			informer, ok := idx.(index.Informer)
			if !ok {
				return fmt.Errorf("the %s index cannot describe its installation, use --index fdb-list", idx.Name())
			}

			out, err := informer.Info(cmd.Context())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
