package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/formulahunter/recordsync-go/internal/recordstore"
)

func newConflictsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "List unresolved sync conflicts",
		Long: `Display the conflict partitions left by the most recent sync.

Each conflict shows the server's version and the client's version side by
side. Use 'recordsync resolve' to pick one.`,
		RunE: runConflicts,
	}
}

// conflictJSON is the JSON-serializable representation of a single conflict.
type conflictJSON struct {
	Type   string `json:"type"`
	ID     int64  `json:"id"`
	Server string `json:"server"`
	Client string `json:"client"`
}

func runConflicts(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	items := flattenConflicts(cc.Engine.Conflicts())

	if len(items) == 0 {
		if !cc.Flags.JSON {
			fmt.Println("No unresolved conflicts.")
		} else {
			fmt.Println("[]")
		}

		return nil
	}

	if cc.Flags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(items)
	}

	printConflictsTable(items)

	return nil
}

// countConflictEntries returns the total number of conflict entries across
// all types in ti.
func countConflictEntries(ti recordstore.TypeIndex) int {
	n := 0

	for _, ranks := range ti {
		n += len(ranks[recordstore.RankConflict])
	}

	return n
}

// flattenConflicts walks a TypeIndex's conflict rank into a flat,
// display-ready list, describing each version by its payload's String(),
// or as "<deleted>" for a tombstone and "<missing>" for an empty slot.
func flattenConflicts(ti recordstore.TypeIndex) []conflictJSON {
	var out []conflictJSON

	for typeName, ranks := range ti {
		for id, entry := range ranks[recordstore.RankConflict] {
			server, client := "<missing>", "<missing>"

			if len(entry.Conflict) > 0 {
				server = describeConflictVersion(entry.Conflict[0])
			}

			if len(entry.Conflict) > 1 {
				client = describeConflictVersion(entry.Conflict[1])
			}

			out = append(out, conflictJSON{Type: typeName, ID: int64(id), Server: server, Client: client})
		}
	}

	return out
}

func describeConflictVersion(v *recordstore.ConflictVersion) string {
	if v == nil {
		return "<missing>"
	}

	if v.IsDeleted() {
		return "<deleted>"
	}

	return v.Record.Payload.String()
}

func printConflictsTable(items []conflictJSON) {
	headers := []string{"TYPE", "ID", "SERVER", "CLIENT"}
	rows := make([][]string, len(items))

	for i, c := range items {
		rows[i] = []string{c.Type, strconv.FormatInt(c.ID, 10), c.Server, c.Client}
	}

	printTable(os.Stdout, headers, rows)
}
