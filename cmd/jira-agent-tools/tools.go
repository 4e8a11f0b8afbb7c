package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tuannvm/jira-agent-tools/internal/agents"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields [project] [issue-type]",
	Short: "Show the custom fields detected for a project",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newStack()
		if err != nil {
			return err
		}
		toolArgs := map[string]interface{}{}
		if len(args) > 0 {
			toolArgs["project"] = args[0]
		}
		if len(args) > 1 {
			toolArgs["issue_type"] = args[1]
		}
		out, err := st.registry.Call(cmd.Context(), "detect_fields", toolArgs)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var listTools bool

var callCmd = &cobra.Command{
	Use:   "call <tool> [json-args]",
	Short: "Run one tool directly, e.g. call get_issue '{\"issue_key\":\"PROJ-1\"}'",
	Args: func(cmd *cobra.Command, args []string) error {
		if listTools {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.RangeArgs(1, 2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newStack()
		if err != nil {
			return err
		}
		if listTools {
			fmt.Fprintln(cmd.OutOrStdout(), st.registry.Describe())
			return nil
		}
		toolArgs := map[string]interface{}{}
		if len(args) == 2 {
			if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
				return fmt.Errorf("arguments must be a JSON object: %w", err)
			}
		}
		out, err := st.registry.Call(cmd.Context(), args[0], toolArgs)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var (
	askURL     string
	askTimeout time.Duration
)

var askCmd = &cobra.Command{
	Use:   "ask <request>",
	Short: "Send a request to a running A2A agent and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := askURL
		if url == "" {
			url = cfg.AgentURL
		}
		c, err := agents.SetupA2AClient(cfg, url)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
		defer cancel()

		out, err := agents.Ask(ctx, c, strings.Join(args, " "), time.Second)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	callCmd.Flags().BoolVar(&listTools, "list", false, "List available tools")
	askCmd.Flags().StringVar(&askURL, "url", "", "Agent URL (default AGENT_URL)")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "How long to wait for the reply")
}
