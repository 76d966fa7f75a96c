package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/formulahunter/recordsync-go/internal/noterecord"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show cache location, remote endpoint, and last-sync time",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

type statusJSON struct {
	CachePath  string `json:"cache_path"`
	RemoteURL  string `json:"remote_url"`
	LastSync   int64  `json:"last_sync"`
	NoteCount  int    `json:"note_count"`
	Conflicts  int    `json:"conflicts"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	st := statusJSON{
		CachePath: cc.Cfg.Cache.Path,
		RemoteURL: cc.Cfg.Remote.BaseURL,
		LastSync:  int64(cc.Engine.LastSync()),
		NoteCount: len(cc.Store.Active(noterecord.TypeName)),
		Conflicts: countConflictEntries(cc.Engine.Conflicts()),
	}

	if cc.Flags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(st)
	}

	fmt.Printf("Cache:     %s\n", st.CachePath)
	fmt.Printf("Remote:    %s\n", st.RemoteURL)
	fmt.Printf("Last sync: %s\n", formatTimestamp(st.LastSync))
	fmt.Printf("Notes:     %d\n", st.NoteCount)

	if st.Conflicts > 0 {
		fmt.Printf("Conflicts: %d (run 'recordsync conflicts')\n", st.Conflicts)
	}

	return nil
}
