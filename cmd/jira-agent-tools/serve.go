package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tuannvm/jira-agent-tools/internal/agents"
	"github.com/tuannvm/jira-agent-tools/internal/llm"
	log "github.com/tuannvm/jira-agent-tools/internal/logging"
	"github.com/tuannvm/jira-agent-tools/internal/mcpserver"
	"github.com/tuannvm/jira-agent-tools/internal/webhook"
)

var serveMCPCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Serve the Jira tools over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newStack()
		if err != nil {
			return err
		}
		return mcpserver.Serve(mcpserver.New(st.registry, st.client, st.service))
	},
}

var noWebhook bool

var serveA2ACmd = &cobra.Command{
	Use:   "serve-a2a",
	Short: "Serve the Jira tools as an A2A agent, with the Jira webhook receiver",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newStack()
		if err != nil {
			return err
		}

		var planner agents.Planner
		if cfg.LLMProvider != "" {
			model, err := llm.NewClient(cfg)
			if err != nil {
				return err
			}
			planner = llm.NewPlanner(model, st.registry)
			log.Infof("Free-text requests enabled with %s/%s", cfg.LLMProvider, cfg.LLMModel)
		}

		agent := agents.NewJiraAgent(st.registry, planner)
		srv, err := agents.SetupServer(agents.ServerOptions(cfg, agent, st.registry))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !noWebhook {
			hook := webhook.NewServer(cfg, webhook.NewHandler(st.service))
			go func() {
				log.Infof("Webhook receiver listening on %s/webhook", hook.Addr)
				if err := hook.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("Webhook server failed: %v", err)
					stop()
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := hook.Shutdown(shutdownCtx); err != nil {
					log.Warnf("Webhook server shutdown: %v", err)
				}
			}()
		}

		if err := agents.StartServer(ctx, srv, cfg.ServerHost, cfg.ServerPort); err != nil {
			return err
		}
		log.Infof("Server shutdown complete")
		return nil
	},
}

func init() {
	serveA2ACmd.Flags().BoolVar(&noWebhook, "no-webhook", false, "Do not start the webhook receiver")
}
