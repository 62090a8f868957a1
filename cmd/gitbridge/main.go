package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inkcms/gitbridge/internal/auth"
	"github.com/inkcms/gitbridge/internal/cache"
	"github.com/inkcms/gitbridge/internal/client"
	"github.com/inkcms/gitbridge/internal/config"
	"github.com/inkcms/gitbridge/internal/repo"
	"github.com/inkcms/gitbridge/internal/workflow"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "gitbridge",
	Short: "Store and version CMS content in a GitLab repository",
	Long:  "gitbridge translates content-management operations (read, save, editorial workflow) into GitLab API calls against a configured repository.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gitbridge v%s\n", version)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		if _, err := loadConfig(cmd, configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Config validation failed: %v\n", err)
			return err
		}
		fmt.Printf("Config validation passed: %s\n", configPath)
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated identity and repository access",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		user, err := a.store.CurrentUser(cmd.Context())
		if err != nil {
			return err
		}
		collaborator, err := a.store.IsCollaborator(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s)\n", user.Username, user.Name)
		fmt.Printf("write access to %s: %v\n", a.cfg.GitLab.Repo, collaborator)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Run the configured login flow and print the access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := loadConfig(cmd, configPath)
		if err != nil {
			return err
		}

		strategy, err := auth.NewStrategy(cfg)
		if err != nil {
			return err
		}

		challenge, err := strategy.BeginLogin(cmd.Context())
		if err != nil {
			return err
		}

		code := ""
		if challenge.AuthorizeURL != "" {
			fmt.Printf("Visit and authorize:\n  %s\n\nAuthorization code: ", challenge.AuthorizeURL)
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil {
				return fmt.Errorf("reading authorization code: %w", err)
			}
			code = strings.TrimSpace(line)
		}

		creds, err := strategy.CompleteLogin(cmd.Context(), code, challenge.State)
		if err != nil {
			return err
		}
		fmt.Println(creds.Token)
		return nil
	},
}

// app bundles the wired-up adapter for command handlers.
type app struct {
	cfg    *config.Config
	store  *repo.Service
	engine *workflow.Engine
	log    *logrus.Logger
}

func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			logrus.Warnf("could not load env file %s: %v", envFile, err)
		}
	} else {
		godotenv.Load(".env")
	}
	return config.Load(path)
}

func setup(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(cmd, configPath)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(level)
	}

	strategy, err := auth.NewStrategy(cfg)
	if err != nil {
		return nil, err
	}
	creds, err := strategy.CompleteLogin(cmd.Context(), "", "")
	if err != nil {
		return nil, fmt.Errorf("obtaining token via %s (run `gitbridge login` for interactive flows): %w", strategy.Name(), err)
	}

	cl, err := client.New(cfg.GitLab.APIRoot, creds.Token, cfg.GitLab.Repo, client.WithLogger(log))
	if err != nil {
		return nil, err
	}

	store, err := cache.New(cfg.Cache.MaxEntries)
	if err != nil {
		return nil, err
	}

	rs := repo.New(cl, cfg.GitLab.Branch, repo.WithCache(store), repo.WithLogger(log))

	initial, err := workflow.ParseStatus(cfg.Workflow.InitialStatus)
	if err != nil {
		return nil, err
	}
	engine := workflow.New(cl, rs, workflow.Settings{
		BaseBranch:    cfg.GitLab.Branch,
		BranchPrefix:  cfg.Workflow.BranchPrefix,
		LabelPrefix:   cfg.Workflow.LabelPrefix,
		InitialStatus: initial,
		SquashMerges:  cfg.GitLab.SquashMerges,
	}, workflow.WithLogger(log))

	return &app{cfg: cfg, store: rs, engine: engine, log: log}, nil
}

func main() {
	rootCmd.PersistentFlags().StringP("config", "c", "gitbridge.yaml", "Path to config file")
	rootCmd.PersistentFlags().String("env-file", "", "Path to .env file (optional)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(metaCmd)
	rootCmd.AddCommand(workflowCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
