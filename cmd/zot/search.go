package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scholium/zotero-go/zotero"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Manage saved searches",
}

var searchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the library's saved searches",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newZoteroClient()
		if err != nil {
			return err
		}
		defer client.Close()

		searches, err := client.Searches(cmd.Context())
		if err != nil {
			exitWithError(err)
		}
		return printItems(searches)
	},
}

var searchConditions []string

var searchCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a saved search",
	Long: `Create a saved search from one or more conditions. Each --cond takes
a condition;operator;value triple, for example:

  zot search create "recent bells" --cond "quicksearch-everything;contains;bells"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(searchConditions) == 0 {
			return fmt.Errorf("at least one --cond is required")
		}
		conditions := make([]zotero.SearchCondition, 0, len(searchConditions))
		for _, raw := range searchConditions {
			parts := strings.SplitN(raw, ";", 3)
			if len(parts) != 3 {
				return fmt.Errorf("condition %q is not a condition;operator;value triple", raw)
			}
			conditions = append(conditions, zotero.SearchCondition{
				Condition: parts[0], Operator: parts[1], Value: parts[2],
			})
		}

		client, err := newZoteroClient()
		if err != nil {
			return err
		}
		defer client.Close()

		result, err := client.CreateSavedSearch(cmd.Context(), args[0], conditions)
		if err != nil {
			exitWithError(err)
		}
		return outputJSON(result)
	},
}

var searchDeleteCmd = &cobra.Command{
	Use:   "delete KEY...",
	Short: "Delete saved searches by key",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newZoteroClient()
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.DeleteSavedSearches(cmd.Context(), args...); err != nil {
			exitWithError(err)
		}
		if humanOutput {
			outputHuman("deleted %d saved searches\n", len(args))
			return nil
		}
		return outputJSON(map[string]any{"deleted": args})
	},
}

var searchConditionsCmd = &cobra.Command{
	Use:   "conditions [CONDITION]",
	Short: "Show available search conditions, or the operators of one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newZoteroClient()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx := cmd.Context()
		if len(args) == 1 {
			ops, err := client.ShowConditionOperators(ctx, args[0])
			if err != nil {
				exitWithError(err)
			}
			return outputJSON(ops)
		}
		conditions, err := client.ShowConditions(ctx)
		if err != nil {
			exitWithError(err)
		}
		return outputJSON(conditions)
	},
}

func init() {
	searchCreateCmd.Flags().StringArrayVar(&searchConditions, "cond", nil, "condition;operator;value triple (repeatable)")
	searchCmd.AddCommand(searchListCmd, searchCreateCmd, searchDeleteCmd, searchConditionsCmd)
	rootCmd.AddCommand(searchCmd)
}
