package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inkcms/gitbridge/internal/repo"
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List files under a repository path",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}

		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		ref, _ := cmd.Flags().GetString("ref")
		if ref == "" {
			ref = a.cfg.GitLab.Branch
		}
		recursive, _ := cmd.Flags().GetBool("recursive")

		files, err := a.store.ListAllFiles(cmd.Context(), path, ref, recursive)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Println(f.Path)
		}
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Print the content of a repository file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}

		ref, _ := cmd.Flags().GetString("ref")
		if ref == "" {
			ref = a.cfg.GitLab.Branch
		}

		content, err := a.store.ReadFile(cmd.Context(), args[0], ref)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(content)
		return err
	},
}

var saveCmd = &cobra.Command{
	Use:   "save <file>...",
	Short: "Commit local files to the base branch at the same paths",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}

		message, _ := cmd.Flags().GetString("message")
		files, err := readLocalFiles(args)
		if err != nil {
			return err
		}

		items, err := a.store.BuildCommitItems(cmd.Context(), files, a.cfg.GitLab.Branch)
		if err != nil {
			return err
		}
		result, err := a.store.SubmitCommit(cmd.Context(), items, message, a.cfg.GitLab.Branch, nil, false)
		if err != nil {
			return err
		}
		fmt.Printf("committed %s\n", result.ShortSHA)
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>...",
	Short: "Delete repository files in one commit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}

		message, _ := cmd.Flags().GetString("message")
		result, err := a.store.DeleteFiles(cmd.Context(), args, message)
		if err != nil {
			return err
		}
		fmt.Printf("committed %s\n", result.ShortSHA)
		return nil
	},
}

var metaCmd = &cobra.Command{
	Use:   "meta <path>",
	Short: "Show last-commit author and date of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}

		ref, _ := cmd.Flags().GetString("ref")
		if ref == "" {
			ref = a.cfg.GitLab.Branch
		}

		meta := a.store.FileMetadata(cmd.Context(), args[0], ref)
		if meta.AuthorName == "" {
			fmt.Println("no metadata available")
			return nil
		}
		fmt.Printf("%s  %s\n", meta.AuthorName, meta.AuthoredAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

func readLocalFiles(paths []string) ([]repo.File, error) {
	files := make([]repo.File, len(paths))
	for i, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		files[i] = repo.File{Path: p, Content: content}
	}
	return files, nil
}

func init() {
	lsCmd.Flags().String("ref", "", "Ref to list (default: base branch)")
	lsCmd.Flags().Bool("recursive", true, "Recurse into directories")
	getCmd.Flags().String("ref", "", "Ref to read from (default: base branch)")
	metaCmd.Flags().String("ref", "", "Ref to inspect (default: base branch)")
	saveCmd.Flags().StringP("message", "m", "Update content", "Commit message")
	rmCmd.Flags().StringP("message", "m", "Delete content", "Commit message")
}
