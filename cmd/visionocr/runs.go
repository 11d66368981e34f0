package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Abraxas-365/visionocr/storex"
	"github.com/spf13/cobra"
)

func runsCmd() *cobra.Command {
	var opts storex.PaginationOptions
	cmd := &cobra.Command{
		Use:   "runs [ID]",
		Short: "List recorded batch runs, or print one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, settings)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("store.driver is none")
			}
			defer store.Close(context.WithoutCancel(ctx))

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				run, err := store.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(run)
			}

			page, err := store.ListRuns(ctx, opts)
			if err != nil {
				return err
			}
			for _, r := range page.Data {
				fmt.Fprintf(out, "%s  %s  %-10s %s %d  %s %d\n",
					keyText(r.ID), r.StartedAt.Format("2006-01-02 15:04:05"), r.Backend,
					okLabel("ok"), r.Succeeded, failLabel("failed"), r.Failed)
			}
			fmt.Fprintln(out, dimText(fmt.Sprintf("page %d/%d, %d runs", page.Page.Number, page.Page.Pages, page.Page.Total)))
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 25, "runs per page")
	cmd.Flags().StringVar(&opts.Backend, "backend", "", "only runs of this backend")
	return cmd
}
