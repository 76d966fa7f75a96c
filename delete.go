package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/formulahunter/recordsync-go/internal/noterecord"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Tombstone a note and sync the deletion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, args[0])
		},
	}
}

func runDelete(cmd *cobra.Command, idArg string) error {
	cc := mustCLIContext(cmd.Context())

	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return fmt.Errorf("delete: invalid id %q: %w", idArg, err)
	}

	rec, ok := cc.Store.Get(noterecord.TypeName, id)
	if !ok {
		return fmt.Errorf("delete: no note with id %d", id)
	}

	result, err := cc.Engine.Delete(cmd.Context(), noterecord.TypeName, rec)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	cc.Statusf("Deleted note %d\n", id)

	return printSyncResult(cc, result)
}
