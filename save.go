package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formulahunter/recordsync-go/internal/noterecord"
	"github.com/formulahunter/recordsync-go/internal/recordstore"
)

func newSaveCmd() *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Create a new note and sync it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSave(cmd, text)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "note text (required)")
	cmd.MarkFlagRequired("text")

	return cmd
}

func runSave(cmd *cobra.Command, text string) error {
	cc := mustCLIContext(cmd.Context())

	rec := &recordstore.Record{Payload: &noterecord.Note{Text: text}}

	result, err := cc.Engine.Save(cmd.Context(), noterecord.TypeName, rec)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}

	cc.Statusf("Saved note %d\n", int64(rec.Created))

	return printSyncResult(cc, result)
}
