package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"voicelog/internal/domain"
)

func NewEntriesCmd(state *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Manage logged entries",
	}

	cmd.AddCommand(newEntriesDeleteCmd(state))

	return cmd
}

func newEntriesDeleteCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <hydration|food|symptom> <id>",
		Short:   "Delete a log entry and the clip it was dictated from",
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := state.get()
			if err != nil {
				return err
			}
			target := domain.LogTarget(strings.ToLower(strings.TrimSpace(args[0])))
			if err := services.Entries.DeleteEntry(cmd.Context(), target, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s entry %s\n", target, args[1])
			return nil
		},
	}
}
