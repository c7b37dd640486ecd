package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ykarpov/photodex/internal/catalog"
	"github.com/ykarpov/photodex/internal/config"
)

// loadConfig builds the configuration, applying the --catalog override.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Load()
	if path := mustGetString(cmd, "catalog"); path != "" {
		cfg.Catalog.Path = path
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openCatalog opens the active catalog read-write.
func openCatalog(cfg *config.Config) (*catalog.Store, error) {
	return catalog.Open(cfg.Catalog.Path)
}
