package agents

import (
	"context"
	"fmt"
	"time"

	"trpc.group/trpc-go/trpc-a2a-go/server"
	"trpc.group/trpc-go/trpc-a2a-go/taskmanager"

	"github.com/tuannvm/jira-agent-tools/internal/config"
	log "github.com/tuannvm/jira-agent-tools/internal/logging"
	"github.com/tuannvm/jira-agent-tools/internal/tools"
	"github.com/tuannvm/jira-agent-tools/internal/webhook"
)

// SetupServerOptions contains options for setting up an A2A server
type SetupServerOptions struct {
	AgentName    string
	AgentVersion string
	AgentURL     string
	AuthType     string
	JWTSecret    string
	APIKey       string
	Processor    taskmanager.TaskProcessor
	Skills       []server.AgentSkill
}

// ServerOptions fills SetupServerOptions from configuration
func ServerOptions(cfg *config.Config, processor taskmanager.TaskProcessor, registry *tools.Registry) SetupServerOptions {
	return SetupServerOptions{
		AgentName:    cfg.AgentName,
		AgentVersion: config.Version,
		AgentURL:     cfg.AgentURL,
		AuthType:     cfg.AuthType,
		JWTSecret:    cfg.JWTSecret,
		APIKey:       cfg.APIKey,
		Processor:    processor,
		Skills:       Skills(registry),
	}
}

// Skills advertises every registered tool as an agent skill
func Skills(registry *tools.Registry) []server.AgentSkill {
	list := registry.List()
	skills := make([]server.AgentSkill, 0, len(list))
	for _, t := range list {
		skills = append(skills, server.AgentSkill{
			ID:          t.Name,
			Name:        t.Name,
			Description: stringPtr(t.Description),
			Tags:        []string{"jira"},
			Examples:    []string{fmt.Sprintf(`{"tool": %q, "args": {}}`, t.Name)},
		})
	}
	return skills
}

// SetupServer creates and configures an A2A server with common settings
func SetupServer(opts SetupServerOptions) (*server.A2AServer, error) {
	agentCard := server.AgentCard{
		Name:        opts.AgentName,
		Description: stringPtr("Jira Cloud tools with per-project custom field detection"),
		URL:         opts.AgentURL,
		Version:     opts.AgentVersion,
		Provider: &server.AgentProvider{
			Organization: "tuannvm",
		},
		DefaultInputModes:  []string{"text", "data"},
		DefaultOutputModes: []string{"text"},
		Skills:             opts.Skills,
	}

	taskManager, err := taskmanager.NewMemoryTaskManager(opts.Processor)
	if err != nil {
		return nil, fmt.Errorf("failed to create task manager: %w", err)
	}

	serverOpts := []server.Option{
		// JSON-RPC at root so A2AClient.SendTasks posts to "/"
		server.WithJSONRPCEndpoint("/"),
		server.WithReadTimeout(2 * time.Minute),
		server.WithWriteTimeout(2 * time.Minute),
	}

	switch opts.AuthType {
	case "":
		log.Warnf("No authentication configured for %s, running unauthenticated", opts.AgentName)
	case "jwt", "apikey":
		log.Infof("Configuring %s authentication for %s", opts.AuthType, opts.AgentName)
		provider := webhook.NewAuthProvider(&config.Config{AuthType: opts.AuthType, JWTSecret: opts.JWTSecret, APIKey: opts.APIKey})
		serverOpts = append(serverOpts, server.WithAuthProvider(provider))
	default:
		return nil, fmt.Errorf("unsupported auth type: %s", opts.AuthType)
	}

	srv, err := server.NewA2AServer(agentCard, taskManager, serverOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	return srv, nil
}

// StartServer starts the A2A server and stops it when ctx is done
func StartServer(ctx context.Context, srv *server.A2AServer, host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting A2A server on %s", addr)
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Infof("Shutting down A2A server...")
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
