package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func NewArtifactsCmd(state *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "artifacts",
		Short:   "Manage recorded audio clips",
		Aliases: []string{"clips"},
	}

	cmd.AddCommand(newArtifactsListCmd(state))
	cmd.AddCommand(newArtifactsSweepCmd(state))

	return cmd
}

func newArtifactsListCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List stored clips and whether a log entry references them",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := state.get()
			if err != nil {
				return err
			}
			clips, err := services.Artifacts.List(cmd.Context())
			if err != nil {
				return err
			}
			referenced, err := services.Store.ReferencedArtifacts(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tBYTES\tREFERENCED")
			for _, clip := range clips {
				_, ok := referenced[clip.ID]
				fmt.Fprintf(tw, "%s\t%s\t%d\t%t\n",
					clip.ID,
					clip.CreatedAt.Local().Format(time.DateTime),
					clip.Bytes,
					ok,
				)
			}
			return tw.Flush()
		},
	}
}

func newArtifactsSweepCmd(state *rootState) *cobra.Command {
	var minAge time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete clips no log entry references",
		Long: `Delete clips no log entry references.

Clips younger than --min-age are kept so a recording that is still being
processed is never removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := state.get()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("min-age") {
				minAge = services.Config.Audio.OrphanAge
			}
			referenced, err := services.Store.ReferencedArtifacts(cmd.Context())
			if err != nil {
				return err
			}
			removed, err := services.Artifacts.SweepOrphans(cmd.Context(), referenced, minAge)
			if err != nil {
				return err
			}
			for _, id := range removed {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphaned clip(s)\n", len(removed))
			return nil
		},
	}

	cmd.Flags().DurationVar(&minAge, "min-age", 24*time.Hour, "only delete clips older than this")
	return cmd
}
