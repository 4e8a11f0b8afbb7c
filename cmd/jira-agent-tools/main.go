package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tuannvm/jira-agent-tools/internal/config"
	"github.com/tuannvm/jira-agent-tools/internal/fields"
	"github.com/tuannvm/jira-agent-tools/internal/jira"
	log "github.com/tuannvm/jira-agent-tools/internal/logging"
	"github.com/tuannvm/jira-agent-tools/internal/tools"
	"github.com/tuannvm/jira-agent-tools/internal/tracker"
)

var (
	cfg         *config.Config
	development bool
)

var rootCmd = &cobra.Command{
	Use:           "jira-agent-tools",
	Short:         "Jira Cloud tools for MCP clients and A2A agents",
	Version:       config.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if err := log.Configure(cfg.LogLevel, development); err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("project", "", "Default Jira project key")
	rootCmd.PersistentFlags().BoolVar(&development, "dev", false, "Human-readable development logging")

	v := config.GetViper()
	_ = v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("jira_default_project", rootCmd.PersistentFlags().Lookup("project"))

	rootCmd.AddCommand(serveMCPCmd, serveA2ACmd, fieldsCmd, callCmd, askCmd)
}

// stack is the Jira client and everything built on it
type stack struct {
	client   *jira.Client
	service  *tracker.Service
	registry *tools.Registry
}

func newStack() (*stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := jira.NewClient(cfg)
	svc := tracker.New(client, fields.NewResolver(client), tracker.OptionsFromConfig(cfg))
	return &stack{
		client:   client,
		service:  svc,
		registry: tools.NewJiraRegistry(client, svc),
	}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
