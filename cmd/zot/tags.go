package main

import (
	"github.com/spf13/cobra"

	"github.com/scholium/zotero-go/zotero"
)

var (
	tagsLimit  int
	tagsAll    bool
	tagsDelete bool
)

var tagsCmd = &cobra.Command{
	Use:   "tags [TAG...]",
	Short: "List library tags, or delete the named ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newZoteroClient()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx := cmd.Context()
		if tagsDelete {
			if len(args) == 0 {
				return cmd.Help()
			}
			if err := client.DeleteTags(ctx, args...); err != nil {
				exitWithError(err)
			}
			if humanOutput {
				outputHuman("deleted %d tags\n", len(args))
				return nil
			}
			return outputJSON(map[string]any{"deleted": args})
		}

		tags, err := client.Tags(ctx, zotero.Params{"limit": tagsLimit})
		if err != nil {
			exitWithError(err)
		}
		if tagsAll {
			tags, err = client.EverythingStrings(ctx, tags)
			if err != nil {
				exitWithError(err)
			}
		}
		if humanOutput {
			for _, tag := range tags {
				outputHuman("%s\n", tag)
			}
			return nil
		}
		return outputJSON(tags)
	},
}

func init() {
	tagsCmd.Flags().IntVar(&tagsLimit, "limit", 100, "Page size")
	tagsCmd.Flags().BoolVar(&tagsAll, "all", false, "Drain every page")
	tagsCmd.Flags().BoolVar(&tagsDelete, "delete", false, "Delete the named tags")
	rootCmd.AddCommand(tagsCmd)
}
