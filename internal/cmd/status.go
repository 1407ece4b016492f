package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relayproj/relay/internal/appdir"
	"github.com/relayproj/relay/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a run is active",
	RunE: func(cmd *cobra.Command, args []string) error {
		runPath, err := appdir.RunFile()
		if err != nil {
			return err
		}
		runs := store.NewFileStore(runPath)
		if id, ok := runs.Get(); ok {
			fmt.Printf("active run: %s\n", id)
		} else {
			fmt.Println("no active run")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
