package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formulahunter/recordsync-go/internal/recordstore"
)

func newResolveCmd() *cobra.Command {
	var keepServer, keepClient bool

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve sync conflicts",
		Long: `Resolve every outstanding conflict with a single strategy.

  --keep-server  accept the remote store's version of each conflict
  --keep-client  accept the local store's version of each conflict

Run 'recordsync conflicts' first to see what's pending. After resolving,
recordsync re-enters the sync pipeline with the chosen versions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runResolve(cmd, keepServer, keepClient)
		},
	}

	cmd.Flags().BoolVar(&keepServer, "keep-server", false, "accept the remote version of every conflict")
	cmd.Flags().BoolVar(&keepClient, "keep-client", false, "accept the local version of every conflict")
	cmd.MarkFlagsMutuallyExclusive("keep-server", "keep-client")

	return cmd
}

func runResolve(cmd *cobra.Command, keepServer, keepClient bool) error {
	if !keepServer && !keepClient {
		return fmt.Errorf("specify a resolution strategy: --keep-server or --keep-client")
	}

	cc := mustCLIContext(cmd.Context())

	conflicts := cc.Engine.Conflicts()
	if countConflictEntries(conflicts) == 0 {
		fmt.Println("No unresolved conflicts.")
		return nil
	}

	chosenIndex := 0
	if keepClient {
		chosenIndex = 1
	}

	chosen := recordstore.TypeIndex{}

	for typeName, ranks := range conflicts {
		for id, entry := range ranks[recordstore.RankConflict] {
			if chosenIndex >= len(entry.Conflict) {
				return fmt.Errorf("conflict %s/%d has no %s version to keep", typeName, int64(id), strategyLabel(keepClient))
			}

			version := entry.Conflict[chosenIndex]
			if version == nil {
				return fmt.Errorf("conflict %s/%d has no %s version to keep", typeName, int64(id), strategyLabel(keepClient))
			}

			if version.IsDeleted() {
				chosen.Put(typeName, recordstore.RankDeleted, id, recordstore.NewTombstoneEntry(version.Tombstone))
			} else {
				chosen.Put(typeName, recordstore.RankModified, id, recordstore.NewRecordEntry(version.Record))
			}
		}
	}

	result, err := cc.Engine.Resolve(cmd.Context(), chosen)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	return printSyncResult(cc, result)
}

func strategyLabel(keepClient bool) string {
	if keepClient {
		return "client"
	}

	return "server"
}
