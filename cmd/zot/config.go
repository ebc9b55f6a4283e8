package main

import (
	"github.com/spf13/cobra"

	"github.com/scholium/zotero-go/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadGlobalConfig()
		if err != nil {
			return err
		}
		if humanOutput {
			outputHuman("config file:  %s\n", config.GlobalConfigPath())
			outputHuman("library:      %s (%s)\n", cfg.LibraryID, firstNonEmpty(cfg.LibraryType, "user"))
			outputHuman("api key set:  %v\n", cfg.APIKey != "")
			outputHuman("local mode:   %v\n", cfg.Local)
			outputHuman("doi index:    %s\n", cfg.ResolvedIndexPath())
			return nil
		}
		return outputJSON(map[string]any{
			"path":         config.GlobalConfigPath(),
			"library_id":   cfg.LibraryID,
			"library_type": firstNonEmpty(cfg.LibraryType, "user"),
			"api_key_set":  cfg.APIKey != "",
			"local":        cfg.Local,
			"index_path":   cfg.ResolvedIndexPath(),
		})
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
