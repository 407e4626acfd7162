package main

import (
	"fmt"
	"strconv"

	"github.com/dunamismax/passportflow/internal/domain"
	"github.com/spf13/cobra"
)

func newSizesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sizes",
		Short: "List the photo sizes offered by the processing service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.processingClient()
			if err != nil {
				return err
			}
			catalog, degraded := client.CatalogOrFallback(cmd.Context())
			if degraded {
				ctx.logger.Warn().Msg("size catalog unavailable, showing built-in sizes")
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, []string{"Key", "Name", "Width", "Height"}, catalogRows(catalog), []columnAlignment{alignLeft, alignLeft, alignRight, alignRight}))
			return nil
		},
	}
}

func catalogRows(catalog domain.Catalog) [][]string {
	rows := make([][]string, 0, len(catalog))
	for _, spec := range catalog {
		rows = append(rows, []string{spec.Key, spec.Name, strconv.Itoa(spec.Width), strconv.Itoa(spec.Height)})
	}
	return rows
}
