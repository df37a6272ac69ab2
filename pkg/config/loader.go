package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into the provided struct.
// The struct should use `env` tags to define mappings. Map fields use
// "key:value" pairs separated by commas.
//
// Example:
//
//	type Config struct {
//	    Port     int              `env:"HTTP_PORT" envDefault:"8010"`
//	    TaxRates map[string]int64 `env:"TAX_RATES" envKeyValSeparator:":"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
