//go:build integration

// Package testutil starts disposable backing services for integration tests.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/dyluth/sagastore/internal/docker"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const redisPort = nat.Port("6379/tcp")

// runID labels every container started by this test binary.
var runID = docker.GenerateRunID()

// RedisContainer is a Redis server running in Docker for the duration of a test.
type RedisContainer struct {
	t         *testing.T
	container testcontainers.Container
	paused    bool

	// URL is the redis:// URL of the mapped port.
	URL string
}

// StartRedis starts a Redis container and terminates it when the test ends.
func StartRedis(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{string(redisPort)},
		Labels:       docker.BuildLabels(runID, "redis", t.Name()),
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start Redis container: %v", err)
	}

	r := &RedisContainer{t: t, container: container}

	t.Cleanup(func() {
		// Docker refuses to stop a paused container.
		if r.paused {
			r.Unpause()
		}
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get Redis container host: %v", err)
	}
	port, err := container.MappedPort(ctx, redisPort)
	if err != nil {
		t.Fatalf("failed to get Redis container port: %v", err)
	}

	r.URL = fmt.Sprintf("redis://%s:%s", host, port.Port())
	return r
}

// Pause freezes the Redis server. Connections stay open but commands
// time out until Unpause.
func (r *RedisContainer) Pause() {
	r.t.Helper()
	r.setPaused(true)
}

// Unpause resumes a paused Redis server.
func (r *RedisContainer) Unpause() {
	r.t.Helper()
	r.setPaused(false)
}

func (r *RedisContainer) setPaused(paused bool) {
	ctx := context.Background()

	cli, err := docker.NewClient(ctx)
	if err != nil {
		r.t.Fatalf("%v", err)
	}
	defer cli.Close()

	if err := docker.SetPaused(ctx, cli, r.container.GetContainerID(), paused); err != nil {
		r.t.Fatalf("%v", err)
	}
	r.paused = paused
}
