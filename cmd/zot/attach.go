package main

import (
	"github.com/spf13/cobra"

	"github.com/scholium/zotero-go/zotero"
)

var attachParent string

var attachCmd = &cobra.Command{
	Use:   "attach FILE...",
	Short: "Upload files as attachments",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newZoteroClient()
		if err != nil {
			return err
		}
		defer client.Close()

		result, err := client.AttachmentBoth(cmd.Context(), nil, args, attachParent)
		if err != nil {
			exitWithError(err)
		}

		if humanOutput {
			outputHuman("uploaded %d, unchanged %d, failed %d\n",
				len(result.Success), len(result.Unchanged), len(result.Failure))
			return nil
		}
		return outputJSON(map[string]any{
			"success":   keysOf(result.Success),
			"unchanged": keysOf(result.Unchanged),
			"failed":    keysOf(result.Failure),
		})
	},
}

func keysOf(items []zotero.Item) []string {
	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = item.Key()
	}
	return keys
}

func init() {
	attachCmd.Flags().StringVar(&attachParent, "parent", "", "Parent item key")
	rootCmd.AddCommand(attachCmd)
}
