package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-a2a-go/client"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"

	"github.com/tuannvm/jira-agent-tools/internal/config"
	log "github.com/tuannvm/jira-agent-tools/internal/logging"
)

// SetupA2AClient creates an A2A client with the configured authentication
func SetupA2AClient(cfg *config.Config, targetURL string) (*client.A2AClient, error) {
	var opts []client.Option
	switch cfg.AuthType {
	case "apikey":
		log.Debugf("Using API key authentication for A2A client")
		opts = append(opts, client.WithAPIKeyAuth(cfg.APIKey, "X-API-Key"))
	case "":
		log.Warnf("No authentication configured for A2A client")
	default:
		log.Debugf("A2A client does not sign %s requests", cfg.AuthType)
	}

	c, err := client.NewA2AClient(targetURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create A2A client: %w", err)
	}
	return c, nil
}

// Ask sends text to an agent and polls until the task finishes. It returns
// the agent's reply, or an error carrying the reply when the task failed.
func Ask(ctx context.Context, c *client.A2AClient, text string, poll time.Duration) (string, error) {
	task, err := c.SendTasks(ctx, protocol.SendTaskParams{
		ID:      fmt.Sprintf("task-%d", time.Now().UnixNano()),
		Message: protocol.Message{Parts: []protocol.Part{protocol.NewTextPart(text)}},
	})
	if err != nil {
		return "", fmt.Errorf("SendTasks RPC failed: %w", err)
	}
	log.Debugf("Task %s sent, state %s", task.ID, task.Status.State)

	for {
		switch task.Status.State {
		case protocol.TaskState("completed"):
			return statusText(task), nil
		case protocol.TaskState("failed"), protocol.TaskState("canceled"):
			reply := statusText(task)
			if reply == "" {
				reply = string(task.Status.State)
			}
			return "", errors.New(reply)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(poll):
		}
		task, err = c.GetTasks(ctx, protocol.TaskQueryParams{ID: task.ID})
		if err != nil {
			return "", fmt.Errorf("GetTasks RPC failed: %w", err)
		}
	}
}

func statusText(task *protocol.Task) string {
	if task.Status.Message == nil {
		return ""
	}
	return strings.TrimSpace(messageText(*task.Status.Message))
}
