package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/your-org/faceid/internal/events"
	"github.com/your-org/faceid/internal/merge"
	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/storage"
)

func newMergeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <group_id> <target_person_id> <source_person_id>...",
		Short: "Merge source persons into a target",
		Long: `Move every sample of each source person into the target and remove
the emptied sources. The target is created as a permanent person when it
does not exist. Failures are reported per source; whatever was moved stays
moved.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pub, closePub := a.publisher(ctx)
			defer closePub()

			res, err := merge.NewCoordinator(a.store, pub).Merge(ctx, merge.Request{
				GroupID:         args[0],
				TargetPersonID:  args[1],
				SourcePersonIDs: args[2:],
			})
			if res == nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range res.MergedSources {
				fmt.Fprintf(out, "merged %s (%d faces, temporary=%t)\n", s.PersonID, s.FacesMoved, s.WasTempUser)
			}
			for _, f := range res.Failures {
				fmt.Fprintf(out, "failed %s\n", f.Error())
			}
			fmt.Fprintf(out, "%d faces moved into %s\n", res.TotalFacesMoved, res.TargetPersonID)
			return err
		},
	}
}

func newDeleteGroupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-group <group_id>",
		Short: "Delete a group and every person in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupID := args[0]
			if !mustGetBool(cmd, "yes") {
				return fmt.Errorf("refusing to delete group %q without --yes", groupID)
			}
			if err := a.store.DeleteGroup(groupID); err != nil {
				return err
			}
			if a.cfg.MinIO.Enabled() {
				if mc, err := storage.NewMinIOStore(a.cfg.MinIO); err == nil {
					if err := mc.DeleteGroupSources(cmd.Context(), groupID); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warning: archived sources not removed: %v\n", err)
					}
				}
			}

			pub, closePub := a.publisher(cmd.Context())
			defer closePub()
			events.Emit(cmd.Context(), pub, models.NewIdentityEvent(models.EventGroupDeleted, groupID))

			fmt.Fprintln(cmd.OutOrStdout(), "deleted", groupID)
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "Confirm deletion")
	return cmd
}

func newSweepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Finish group deletions left behind by a crash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := a.store.SweepTombstones()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d deleted group(s)\n", n)
			return nil
		},
	}
}
