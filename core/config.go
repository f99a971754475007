package core

import (
	"fmt"
	"strings"
)

type OrganizationConfig struct {
	DID string `koanf:"did" mapstructure:"did"`
}

// FeatureConfig selects which event families the service acts on. Disabled
// families are acknowledged as ignored.
type FeatureConfig struct {
	CatalogSync bool `koanf:"catalog_sync" mapstructure:"catalog_sync"`
	Negotiation bool `koanf:"negotiation" mapstructure:"negotiation"`
}

type ParallelismConfig struct {
	MaxInFlight int `koanf:"max_in_flight" mapstructure:"max_in_flight"`
}

type Config struct {
	ServiceName  string             `koanf:"service_name" mapstructure:"service_name"`
	Organization OrganizationConfig `koanf:"organization" mapstructure:"organization"`
	Features     FeatureConfig      `koanf:"features" mapstructure:"features"`
	Parallelism  ParallelismConfig  `koanf:"parallelism" mapstructure:"parallelism"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "contracts",
		Features: FeatureConfig{
			CatalogSync: true,
			Negotiation: true,
		},
		Parallelism: ParallelismConfig{MaxInFlight: 16},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Parallelism.MaxInFlight < 0 {
		return fmt.Errorf("core: parallelism.max_in_flight must not be negative")
	}
	return nil
}
