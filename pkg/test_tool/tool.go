package testtool

import (
	"context"
	"fmt"
	"net"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
)

// Service 測試用的 store 容器，以及它在 host 上的位址
type Service struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

// Addr host:port of the first exposed port
func (s *Service) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// Terminate stop the container; safe on a nil Service
func (s *Service) Terminate(ctx context.Context) error {
	if s == nil || s.Container == nil {
		return nil
	}
	return s.Container.Terminate(ctx)
}

// StartService run req and resolve the host port mapped to req.ExposedPorts[0]
func StartService(ctx context.Context, req testcontainers.ContainerRequest) (*Service, error) {
	if len(req.ExposedPorts) == 0 {
		return nil, fmt.Errorf("%s: no exposed port", req.Image)
	}
	exposed, err := nat.NewPort(nat.SplitProtoPort(req.ExposedPorts[0]))
	if err != nil {
		return nil, err
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, err
	}
	svc := &Service{Container: container}

	if svc.Host, err = container.Host(ctx); err != nil {
		_ = svc.Terminate(ctx)
		return nil, err
	}
	mapped, err := container.MappedPort(ctx, exposed)
	if err != nil {
		_ = svc.Terminate(ctx)
		return nil, err
	}
	svc.Port = mapped.Port()

	return svc, nil
}
