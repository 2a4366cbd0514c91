// Package docker surfaces the containers running next to a workspace so
// the status bar can show and control them without leaving the app.
package docker

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// Container is one container row shown in the workspace panel
type Container struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Image   string   `json:"image"`
	State   string   `json:"state"`
	Status  string   `json:"status"`
	Ports   []string `json:"ports"`
	Created int64    `json:"created"`
}

// Manager wraps the Docker API client
type Manager struct {
	client *client.Client
}

// NewManager connects to the local Docker daemon from the environment
func NewManager() (*Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &Manager{client: cli}, nil
}

// IsAvailable reports whether the daemon answers a ping
func (m *Manager) IsAvailable(ctx context.Context) bool {
	if m.client == nil {
		return false
	}
	_, err := m.client.Ping(ctx)
	return err == nil
}

// ListContainers lists containers, including stopped ones when all is set
func (m *Manager) ListContainers(ctx context.Context, all bool) ([]Container, error) {
	containers, err := m.client.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, err
	}
	return convert(containers), nil
}

// ListForWorkspace lists containers whose name matches the workspace's
// project name. Falls back to the full list if the filtered query fails.
func (m *Manager) ListForWorkspace(ctx context.Context, projectName string) ([]Container, error) {
	args := filters.NewArgs()
	args.Add("name", projectName)

	containers, err := m.client.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: args,
	})
	if err != nil {
		return m.ListContainers(ctx, true)
	}
	return convert(containers), nil
}

func convert(containers []types.Container) []Container {
	result := make([]Container, len(containers))
	for i, c := range containers {
		ports := make([]string, len(c.Ports))
		for j, p := range c.Ports {
			ports[j] = formatPort(p)
		}

		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}

		id := c.ID
		if len(id) > 12 {
			id = id[:12]
		}

		result[i] = Container{
			ID:      id,
			Name:    name,
			Image:   c.Image,
			State:   c.State,
			Status:  c.Status,
			Ports:   ports,
			Created: c.Created,
		}
	}
	return result
}

// Start starts a container
func (m *Manager) Start(ctx context.Context, id string) error {
	return m.client.ContainerStart(ctx, id, container.StartOptions{})
}

// Stop stops a container with a 10s grace period
func (m *Manager) Stop(ctx context.Context, id string) error {
	timeout := 10
	return m.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout})
}

// Restart restarts a container with a 10s grace period
func (m *Manager) Restart(ctx context.Context, id string) error {
	timeout := 10
	return m.client.ContainerRestart(ctx, id, container.StopOptions{Timeout: &timeout})
}

// Remove removes a container
func (m *Manager) Remove(ctx context.Context, id string, force bool) error {
	return m.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: force})
}

// Logs returns the last tail lines of a container's combined output
func (m *Manager) Logs(ctx context.Context, id string, tail int) (string, error) {
	options := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       "100",
		Timestamps: true,
	}
	if tail > 0 {
		options.Tail = strconv.Itoa(tail)
	}

	reader, err := m.client.ContainerLogs(ctx, id, options)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	// Non-TTY log streams are multiplexed with an 8-byte frame header
	var logs strings.Builder
	buf := make([]byte, 32*1024)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			data := buf[:n]
			if len(data) > 8 {
				logs.Write(data[8:])
			} else {
				logs.Write(data)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
	}

	return logs.String(), nil
}

// Close closes the Docker client
func (m *Manager) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

func formatPort(p types.Port) string {
	proto := strings.ToLower(string(p.Type))
	if p.PublicPort > 0 {
		return fmt.Sprintf("%s:%d->%d", proto, p.PublicPort, p.PrivatePort)
	}
	return fmt.Sprintf("%s:%d", proto, p.PrivatePort)
}
