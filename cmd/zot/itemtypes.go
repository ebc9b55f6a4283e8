package main

import (
	"github.com/spf13/cobra"
)

var itemtypesFields string

var itemtypesCmd = &cobra.Command{
	Use:   "itemtypes",
	Short: "List the item types the library accepts",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newZoteroClient()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx := cmd.Context()
		if itemtypesFields != "" {
			fields, err := client.ItemTypeFields(ctx, itemtypesFields)
			if err != nil {
				exitWithError(err)
			}
			if humanOutput {
				for _, f := range fields {
					outputHuman("%s  %s\n", f.Field, f.Localized)
				}
				return nil
			}
			return outputJSON(fields)
		}

		types, err := client.ItemTypes(ctx)
		if err != nil {
			exitWithError(err)
		}
		if humanOutput {
			for _, it := range types {
				outputHuman("%s  %s\n", it.ItemType, it.Localized)
			}
			return nil
		}
		return outputJSON(types)
	},
}

func init() {
	itemtypesCmd.Flags().StringVar(&itemtypesFields, "fields", "", "Show the fields of this item type instead")
	rootCmd.AddCommand(itemtypesCmd)
}
