package main

import (
	"github.com/spf13/cobra"

	"github.com/scholium/zotero-go/zotero"
)

var (
	collectionsTop bool
	collectionsAll bool
)

var collectionsCmd = &cobra.Command{
	Use:   "collections [KEY]",
	Short: "List collections, or the items of one collection",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newZoteroClient()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx := cmd.Context()
		if len(args) == 1 {
			items, err := client.CollectionItems(ctx, args[0])
			if err != nil {
				exitWithError(err)
			}
			return printItems(items)
		}

		var colls []zotero.Collection
		switch {
		case collectionsAll:
			colls, err = client.AllCollections(ctx, "")
		case collectionsTop:
			colls, err = client.CollectionsTop(ctx)
		default:
			colls, err = client.Collections(ctx)
		}
		if err != nil {
			exitWithError(err)
		}
		return printItems(colls)
	},
}

func init() {
	collectionsCmd.Flags().BoolVar(&collectionsTop, "top", false, "Top-level collections only")
	collectionsCmd.Flags().BoolVar(&collectionsAll, "all", false, "Every collection at every depth")
	rootCmd.AddCommand(collectionsCmd)
}
