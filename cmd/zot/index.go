package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/scholium/zotero-go/internal/config"
	"github.com/scholium/zotero-go/internal/doidx"
)

func openIndex() (*doidx.Index, error) {
	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		return nil, err
	}
	return doidx.Open(cfg.ResolvedIndexPath())
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Maintain the local DOI index",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Scan the whole library and index every item with a DOI",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newZoteroClient()
		if err != nil {
			return err
		}
		defer client.Close()

		ix, err := openIndex()
		if err != nil {
			return err
		}
		defer ix.Close()

		n, err := ix.Build(cmd.Context(), client)
		if err != nil {
			exitWithError(err)
		}
		if humanOutput {
			outputHuman("indexed %d DOIs\n", n)
			return nil
		}
		return outputJSON(map[string]any{"indexed": n})
	},
}

var indexLookupCmd = &cobra.Command{
	Use:   "lookup DOI",
	Short: "Resolve a DOI to a library item key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ix, err := openIndex()
		if err != nil {
			return err
		}
		defer ix.Close()

		key, err := ix.Lookup(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if key == "" {
			os.Exit(outputError(ExitNotFound, "DOI not indexed: %s", args[0]))
		}
		if humanOutput {
			outputHuman("%s\n", key)
			return nil
		}
		return outputJSON(map[string]string{"doi": args[0], "key": key})
	},
}

func init() {
	indexCmd.AddCommand(indexBuildCmd, indexLookupCmd)
	rootCmd.AddCommand(indexCmd)
}
