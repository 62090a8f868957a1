package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkcms/gitbridge/internal/workflow"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Manage editorial drafts (branch + merge request lifecycle)",
}

func contentKey(cmd *cobra.Command) (workflow.ContentKey, error) {
	collection, _ := cmd.Flags().GetString("collection")
	slug, _ := cmd.Flags().GetString("slug")
	if collection == "" || slug == "" {
		return workflow.ContentKey{}, fmt.Errorf("--collection and --slug are required")
	}
	return workflow.ContentKey{Collection: collection, Slug: slug}, nil
}

var wfOpenCmd = &cobra.Command{
	Use:   "open <file>...",
	Short: "Open a draft for a content key from local files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		key, err := contentKey(cmd)
		if err != nil {
			return err
		}
		message, _ := cmd.Flags().GetString("message")
		files, err := readLocalFiles(args)
		if err != nil {
			return err
		}

		entry, err := a.engine.Open(cmd.Context(), key, files, message)
		if err != nil {
			return err
		}
		fmt.Printf("draft open on %s (status %s)\n", entry.Branch, entry.Status)
		return nil
	},
}

var wfUpdateCmd = &cobra.Command{
	Use:   "update <file>...",
	Short: "Save new content to an open draft",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		key, err := contentKey(cmd)
		if err != nil {
			return err
		}
		message, _ := cmd.Flags().GetString("message")
		files, err := readLocalFiles(args)
		if err != nil {
			return err
		}

		entry, err := a.engine.Update(cmd.Context(), key, files, message)
		if err != nil {
			return err
		}
		fmt.Printf("draft updated on %s\n", entry.Branch)
		return nil
	},
}

var wfStatusCmd = &cobra.Command{
	Use:   "status <draft|review|ready>",
	Short: "Change the editorial status of a draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		key, err := contentKey(cmd)
		if err != nil {
			return err
		}
		st, err := workflow.ParseStatus(args[0])
		if err != nil {
			return err
		}

		entry, err := a.engine.SetStatus(cmd.Context(), key, st)
		if err != nil {
			return err
		}
		fmt.Printf("%s is now %s\n", entry.Key, entry.Status)
		return nil
	},
}

var wfPublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Merge a draft into the base branch and delete its branch",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		key, err := contentKey(cmd)
		if err != nil {
			return err
		}
		if err := a.engine.Publish(cmd.Context(), key); err != nil {
			return err
		}
		fmt.Printf("%s published\n", key)
		return nil
	},
}

var wfDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Close a draft without merging and delete its branch",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		key, err := contentKey(cmd)
		if err != nil {
			return err
		}
		if err := a.engine.Delete(cmd.Context(), key); err != nil {
			return err
		}
		fmt.Printf("%s deleted\n", key)
		return nil
	},
}

var wfListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open drafts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		entries, err := a.engine.ListEntries(cmd.Context())
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%-10s %-40s %s\n", e.Status, e.Key, e.Branch)
		}
		return nil
	},
}

var wfDiffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show the changed paths of a draft against the base branch",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		key, err := contentKey(cmd)
		if err != nil {
			return err
		}
		diffs, err := a.engine.Diff(cmd.Context(), key)
		if err != nil {
			return err
		}
		for _, d := range diffs {
			marker := " "
			if d.Binary {
				marker = "B"
			}
			fmt.Printf("%-9s %s %s\n", d.Kind, marker, d.NewPath)
		}
		return nil
	},
}

var wfChecksCmd = &cobra.Command{
	Use:   "checks",
	Short: "Show normalized CI statuses of a draft's head commit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		key, err := contentKey(cmd)
		if err != nil {
			return err
		}
		checks, err := a.engine.Statuses(cmd.Context(), key)
		if err != nil {
			return err
		}
		for _, c := range checks {
			fmt.Printf("%-8s %-30s %s\n", c.State, c.Context, c.TargetURL)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{wfOpenCmd, wfUpdateCmd, wfStatusCmd, wfPublishCmd, wfDeleteCmd, wfDiffCmd, wfChecksCmd} {
		c.Flags().String("collection", "", "Collection name of the content key")
		c.Flags().String("slug", "", "Slug of the content key")
	}
	wfOpenCmd.Flags().StringP("message", "m", "Create content", "Commit message")
	wfUpdateCmd.Flags().StringP("message", "m", "Update content", "Commit message")

	workflowCmd.AddCommand(wfOpenCmd)
	workflowCmd.AddCommand(wfUpdateCmd)
	workflowCmd.AddCommand(wfStatusCmd)
	workflowCmd.AddCommand(wfPublishCmd)
	workflowCmd.AddCommand(wfDeleteCmd)
	workflowCmd.AddCommand(wfListCmd)
	workflowCmd.AddCommand(wfDiffCmd)
	workflowCmd.AddCommand(wfChecksCmd)
}
