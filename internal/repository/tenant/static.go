package tenant

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/tenant"
)

// Static serves tenant settings declared in the config file. Used by the memory storage driver.
type Static struct {
	configs map[[2]string]tenant.Config
}

// NewStatic validates and indexes the given configs by (tenant, platform).
func NewStatic(configs []tenant.Config) (*Static, error) {
	s := &Static{configs: make(map[[2]string]tenant.Config, len(configs))}
	for _, c := range configs {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		s.configs[[2]string{c.TenantID, c.Platform}] = c
	}
	return s, nil
}

// GetConfig returns the settings of tenantID on platform.
func (s *Static) GetConfig(_ context.Context, tenantID, platform string) (tenant.Config, error) {
	c, ok := s.configs[[2]string{tenantID, platform}]
	if !ok {
		return tenant.Config{}, fmt.Errorf("tenant %s on %s: %w", tenantID, platform, domain.ErrTenantNotFound)
	}
	return c, nil
}
