package parser

import (
	"fmt"
	"log"

	"shipdecl/internal/config"
	"shipdecl/internal/domain"
	"shipdecl/internal/port"
)

// ProviderFactory creates a PageExtractor from a provider config.
type ProviderFactory func(cfg *config.ParserProviderConfig) (port.PageExtractor, error)

// registry of provider factories, populated by init() in each provider package.
var providers = map[string]ProviderFactory{}

// RegisterProvider registers a provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// NewProvider creates a single provider from its config using the registered factory.
func NewProvider(cfg *config.ParserProviderConfig) (port.PageExtractor, error) {
	factory, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, cfg.Provider)
	}
	return factory(cfg)
}

// NewPageExtractor builds the configured provider chain. With a secondary provider the
// result is a FallbackExtractor; a secondary that cannot be built is logged and skipped.
func NewPageExtractor(cfg *config.ParserConfig) (port.PageExtractor, error) {
	primaryCfg := cfg.PrimaryConfig()
	primary, err := NewProvider(primaryCfg)
	if err != nil {
		return nil, fmt.Errorf("primary provider: %w", err)
	}

	secondaryCfg := cfg.SecondaryConfig()
	if secondaryCfg == nil {
		return primary, nil
	}
	secondary, err := NewProvider(secondaryCfg)
	if err != nil {
		log.Printf("parser.NewPageExtractor: secondary provider %s unavailable: %v", secondaryCfg.Provider, err)
		return primary, nil
	}
	return NewFallbackExtractor(
		[]port.PageExtractor{primary, secondary},
		[]string{primaryCfg.Provider, secondaryCfg.Provider},
	), nil
}
