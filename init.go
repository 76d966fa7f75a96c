package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Load the local cache and run the first sync",
		Long: `Read K-data from the local cache (if present) and perform an initial
sync cycle against the remote record-sync daemon.

On a cold start (no local cache yet) and an interactive terminal, init asks
before pulling the remote store's full contents into the new local store.`,
		Annotations: map[string]string{manualInitAnnotation: "true"},
		RunE:        runInit,
	}
}

func runInit(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	result, err := cc.Engine.Init(cmd.Context())
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	return printSyncResult(cc, result)
}
