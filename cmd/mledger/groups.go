package main

import (
	"fmt"

	"github.com/franz/music-ledger/internal/attr"
	"github.com/franz/music-ledger/internal/track"
	"github.com/spf13/cobra"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List the keys reports can be grouped by",
	Run: func(cmd *cobra.Command, args []string) {
		for _, g := range track.ValidGroups() {
			kind := "derived"
			if attr.IsStatic(g) {
				kind = "attribute"
			}
			fmt.Printf("%-14s %s\n", g, kind)
		}
	},
}

func init() {
	rootCmd.AddCommand(groupsCmd)
}
