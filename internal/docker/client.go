// Package docker wraps the Docker daemon operations used to run disposable
// backing services for integration tests.
package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"
)

// NewClient creates a Docker client and validates daemon is accessible.
// Returns an error if the Docker daemon is not running or not accessible.
func NewClient(ctx context.Context) (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf(`Docker daemon not accessible: %w

Ensure Docker is running:
  • macOS: Docker Desktop
  • Linux: sudo systemctl start docker`, err)
	}

	return cli, nil
}

// SetPaused freezes or resumes every process in a container. A paused
// container keeps its published ports, so clients connect but get no reply.
func SetPaused(ctx context.Context, cli client.ContainerAPIClient, containerID string, paused bool) error {
	if paused {
		if err := cli.ContainerPause(ctx, containerID); err != nil {
			return fmt.Errorf("failed to pause container %s: %w", containerID, err)
		}
		return nil
	}

	if err := cli.ContainerUnpause(ctx, containerID); err != nil {
		return fmt.Errorf("failed to unpause container %s: %w", containerID, err)
	}
	return nil
}
