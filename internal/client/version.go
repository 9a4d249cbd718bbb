package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Masterminds/semver/v3"
)

// SupportedServerVersions is the backend API range this client understands.
const SupportedServerVersions = ">= 1.0.0, < 2.0.0"

var ErrIncompatibleServer = errors.New("incompatible server version")

type ServerInfo struct {
	Name      string            `json:"name" yaml:"name"`
	Version   string            `json:"version" yaml:"version"`
	Endpoints map[string]string `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
}

type Health struct {
	Status string `json:"status" yaml:"status"`
}

func (h Health) OK() bool {
	return h.Status == "healthy" || h.Status == "ok"
}

func (c *Client) Info(ctx context.Context) (*ServerInfo, error) {
	var info ServerInfo
	_, err := c.do(ctx, request{
		op:     "info",
		method: http.MethodGet,
		route:  "/api",
		path:   "/api",
		noAuth: true,
	}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	_, err := c.do(ctx, request{
		op:     "health",
		method: http.MethodGet,
		route:  "/health",
		path:   "/health",
		noAuth: true,
	}, &h)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// CheckCompatibility fetches the server version and matches it against
// SupportedServerVersions.
func (c *Client) CheckCompatibility(ctx context.Context) (*ServerInfo, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return nil, err
	}
	if err := Compatible(info.Version); err != nil {
		return info, err
	}
	return info, nil
}

func Compatible(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w: unparseable version %q", ErrIncompatibleServer, version)
	}
	constraint, err := semver.NewConstraint(SupportedServerVersions)
	if err != nil {
		return fmt.Errorf("invalid version constraint: %w", err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("%w: server %s, supported %s", ErrIncompatibleServer, v, SupportedServerVersions)
	}
	return nil
}
