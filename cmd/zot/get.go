package main

import (
	"github.com/spf13/cobra"

	"github.com/scholium/zotero-go/zotero"
)

var (
	getChildren bool
	getBibTeX   bool
	getDumpDir  string
)

var getCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Fetch one item by key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newZoteroClient()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx := cmd.Context()
		key := args[0]

		if getDumpDir != "" {
			if err := client.Dump(ctx, key, "", getDumpDir); err != nil {
				exitWithError(err)
			}
			if humanOutput {
				outputHuman("wrote attachment for %s to %s\n", key, getDumpDir)
			}
			return nil
		}

		if getChildren {
			children, err := client.Children(ctx, key)
			if err != nil {
				exitWithError(err)
			}
			return printItems(children)
		}

		if getBibTeX {
			entries, err := client.Bibliography(ctx, zotero.Params{"itemKey": key})
			if err != nil {
				exitWithError(err)
			}
			for _, entry := range entries {
				outputHuman("%s\n", entry)
			}
			return nil
		}

		item, err := client.Item(ctx, key)
		if err != nil {
			exitWithError(err)
		}
		return outputJSON(item)
	},
}

func init() {
	getCmd.Flags().BoolVar(&getChildren, "children", false, "Fetch the item's children instead")
	getCmd.Flags().BoolVar(&getBibTeX, "bib", false, "Print a formatted bibliography entry")
	getCmd.Flags().StringVar(&getDumpDir, "dump", "", "Write the item's file attachment into this directory")
	rootCmd.AddCommand(getCmd)
}
