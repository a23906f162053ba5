package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/your-org/faceid/internal/models"
)

func newListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <group_id>",
		Short: "List a group's persons by kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			listing, err := a.store.ListPersons(args[0])
			if err != nil {
				return err
			}
			if mustGetBool(cmd, "json") {
				return writeJSON(cmd.OutOrStdout(), listing)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PERSON\tKIND\tFACES\tLAST UPDATED")
			for _, group := range [][]models.PersonSummary{listing.Permanent, listing.Temporary} {
				for _, p := range group {
					updated := "-"
					if p.LastUpdated != nil {
						updated = p.LastUpdated.Format(time.RFC3339)
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p.PersonID, p.Kind, p.FaceCount, updated)
				}
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d persons (%d permanent, %d temporary)\n",
				listing.Total(), len(listing.Permanent), len(listing.Temporary))
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

func newLastImageCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "last-image <group_id> <person_id>",
		Short: "Write a person's newest sample to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sample, err := a.store.LatestSample(args[0], args[1])
			if err != nil {
				return err
			}
			out := mustGetString(cmd, "output")
			if out == "" {
				out = sample.Filename
			}
			if err := os.WriteFile(out, sample.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes, %s) -> %s\n",
				sample.Filename, sample.Size, sample.CreatedAt.Format(time.RFC3339), out)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Destination file (defaults to the sample's name)")
	return cmd
}

func newPruneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prune <group_id>",
		Short: "Remove persons that have no samples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pruned, err := a.store.PruneOrphans(args[0])
			for _, id := range pruned {
				fmt.Fprintln(cmd.OutOrStdout(), "pruned", id)
			}
			return err
		},
	}
}
