package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/formulahunter/recordsync-go/internal/noterecord"
)

func newEditCmd() *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Replace a note's text and sync it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, args[0], text)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "new note text (required)")
	cmd.MarkFlagRequired("text")

	return cmd
}

func runEdit(cmd *cobra.Command, idArg, text string) error {
	cc := mustCLIContext(cmd.Context())

	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return fmt.Errorf("edit: invalid id %q: %w", idArg, err)
	}

	rec, ok := cc.Store.Get(noterecord.TypeName, id)
	if !ok {
		return fmt.Errorf("edit: no note with id %d", id)
	}

	rec.Payload = &noterecord.Note{Text: text}

	result, err := cc.Engine.Edit(cmd.Context(), noterecord.TypeName, rec)
	if err != nil {
		return fmt.Errorf("edit: %w", err)
	}

	cc.Statusf("Edited note %d\n", id)

	return printSyncResult(cc, result)
}
