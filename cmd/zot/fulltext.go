package main

import (
	"github.com/spf13/cobra"

	"github.com/scholium/zotero-go/zotero"
)

var fulltextCmd = &cobra.Command{
	Use:   "fulltext",
	Short: "Read and write attachment full-text content",
}

var fulltextGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Fetch the indexed full text of an attachment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newZoteroClient()
		if err != nil {
			return err
		}
		defer client.Close()

		ft, err := client.FulltextItem(cmd.Context(), args[0])
		if err != nil {
			exitWithError(err)
		}
		if humanOutput {
			outputHuman("%s\n", ft.Content)
			return nil
		}
		return outputJSON(ft)
	},
}

var fulltextSetCmd = &cobra.Command{
	Use:   "set KEY PDF",
	Short: "Extract a PDF's text and store it as the attachment's full text",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ft, err := zotero.FulltextFromPDF(args[1])
		if err != nil {
			exitWithError(err)
		}

		client, err := newZoteroClient()
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.SetFulltext(cmd.Context(), args[0], ft); err != nil {
			exitWithError(err)
		}
		if humanOutput {
			outputHuman("indexed %d of %d pages for %s\n", ft.IndexedPages, ft.TotalPages, args[0])
			return nil
		}
		return outputJSON(map[string]any{
			"key":          args[0],
			"indexedPages": ft.IndexedPages,
			"totalPages":   ft.TotalPages,
		})
	},
}

func init() {
	fulltextCmd.AddCommand(fulltextGetCmd, fulltextSetCmd)
	rootCmd.AddCommand(fulltextCmd)
}
