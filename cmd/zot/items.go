package main

import (
	"github.com/spf13/cobra"

	"github.com/scholium/zotero-go/zotero"
)

var (
	itemsLimit int
	itemsTag   string
	itemsQuery string
	itemsTop   bool
	itemsTrash bool
	itemsAll   bool
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List library items",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newZoteroClient()
		if err != nil {
			return err
		}
		defer client.Close()

		params := zotero.Params{"limit": itemsLimit}
		if itemsTag != "" {
			params["tag"] = itemsTag
		}
		if itemsQuery != "" {
			params["q"] = itemsQuery
		}

		ctx := cmd.Context()
		var items []zotero.Item
		switch {
		case itemsTrash:
			items, err = client.Trash(ctx, params)
		case itemsTop:
			items, err = client.Top(ctx, params)
		default:
			items, err = client.Items(ctx, params)
		}
		if err != nil {
			exitWithError(err)
		}
		if itemsAll {
			items, err = client.Everything(ctx, items)
			if err != nil {
				exitWithError(err)
			}
		}
		return printItems(items)
	},
}

func init() {
	itemsCmd.Flags().IntVar(&itemsLimit, "limit", 25, "Page size")
	itemsCmd.Flags().StringVar(&itemsTag, "tag", "", "Filter by tag")
	itemsCmd.Flags().StringVar(&itemsQuery, "q", "", "Quick search query")
	itemsCmd.Flags().BoolVar(&itemsTop, "top", false, "Top-level items only")
	itemsCmd.Flags().BoolVar(&itemsTrash, "trash", false, "List the trash instead")
	itemsCmd.Flags().BoolVar(&itemsAll, "all", false, "Drain every page")
	rootCmd.AddCommand(itemsCmd)
}
