package main

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/formulahunter/recordsync-go/internal/noterecord"
)

func newSearchCmd() *cobra.Command {
	var contains string

	cmd := &cobra.Command{
		Use:   "search",
		Short: "List notes in the local store",
		Long: `Read active notes directly from the local store; this is out of scope
for the sync core, which never filters or searches its own contents.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSearch(cmd, contains)
		},
	}

	cmd.Flags().StringVar(&contains, "contains", "", "only show notes whose text contains this substring")

	return cmd
}

type noteJSON struct {
	ID       int64  `json:"id"`
	Text     string `json:"text"`
	Modified int64  `json:"modified"`
}

func runSearch(cmd *cobra.Command, contains string) error {
	cc := mustCLIContext(cmd.Context())

	active := cc.Store.Active(noterecord.TypeName)

	items := make([]noteJSON, 0, len(active))

	for _, rec := range active {
		note, ok := rec.Payload.(*noterecord.Note)
		if !ok {
			continue
		}

		if contains != "" && !strings.Contains(note.Text, contains) {
			continue
		}

		items = append(items, noteJSON{ID: int64(rec.Created), Text: note.Text, Modified: int64(rec.Modified)})
	}

	if cc.Flags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(items)
	}

	printSearchTable(items)

	return nil
}

func printSearchTable(items []noteJSON) {
	if len(items) == 0 {
		return
	}

	headers := []string{"ID", "MODIFIED", "TEXT"}
	rows := make([][]string, len(items))

	for i, n := range items {
		rows[i] = []string{strconv.FormatInt(n.ID, 10), formatTimestamp(n.Modified), n.Text}
	}

	printTable(os.Stdout, headers, rows)
}
