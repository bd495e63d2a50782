package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"filedeck/internal/infra/logger"
	"filedeck/internal/usecase/discovery"
)

func newDiscoverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "List filedeck servers advertised on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			found, err := discovery.New(logger.Discard()).Scan(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintln(out, "no filedeck servers found")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tADDRESS\tVERSION")
			for _, inst := range found {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", inst.Name, inst.Address, inst.Version)
			}
			return tw.Flush()
		},
	}
}
