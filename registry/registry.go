// Package registry loads the YAML account/strategy registry. A malformed
// entry disables that account with a logged error rather than crashing the
// process; only an empty active set is fatal at startup.
package registry

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/evdnx/fxscan/config"
	"github.com/evdnx/fxscan/logger"
)

// ErrNoActiveAccounts is returned when no valid, active account survives
// loading. This is the only fatal registry condition.
var ErrNoActiveAccounts = errors.New("registry: no active accounts")

// AccountEntry is one account's row in the registry.
type AccountEntry struct {
	AccountID    string              `yaml:"account_id"`
	Active       bool                `yaml:"active"`
	StrategyName string              `yaml:"strategy"`
	Instruments  []string            `yaml:"instruments"`
	Risk         *config.RiskLimits  `yaml:"risk"` // nil = defaults
}

// Registry is the parsed file: named strategy parameter bundles plus the
// accounts that reference them.
type Registry struct {
	Strategies map[string]config.StrategyConfig `yaml:"strategies"`
	Accounts   []AccountEntry                   `yaml:"accounts"`
}

// Load reads and validates the registry. Invalid accounts are skipped with a
// logged error; the returned registry contains only active, valid entries.
func Load(path string, log logger.Logger) (*Registry, error) {
	if log == nil {
		log = logger.NewNop()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	return Parse(data, log)
}

// Parse is Load without the file I/O.
func Parse(data []byte, log logger.Logger) (*Registry, error) {
	if log == nil {
		log = logger.NewNop()
	}
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	for name, sc := range reg.Strategies {
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("registry: strategy %q: %w", name, err)
		}
	}

	kept := reg.Accounts[:0]
	for _, a := range reg.Accounts {
		if !a.Active {
			continue
		}
		if err := validateAccount(&reg, a); err != nil {
			log.Error("registry_account_skipped",
				logger.String("account", a.AccountID),
				logger.Err(err),
			)
			continue
		}
		if a.Risk == nil {
			def := config.DefaultRiskLimits()
			a.Risk = &def
		}
		kept = append(kept, a)
	}
	reg.Accounts = kept
	if len(reg.Accounts) == 0 {
		return nil, ErrNoActiveAccounts
	}
	return &reg, nil
}

func validateAccount(reg *Registry, a AccountEntry) error {
	if a.AccountID == "" {
		return errors.New("missing account_id")
	}
	if a.StrategyName == "" {
		return errors.New("missing strategy name")
	}
	if _, ok := reg.Strategies[a.StrategyName]; !ok {
		return fmt.Errorf("unknown strategy %q", a.StrategyName)
	}
	if len(a.Instruments) == 0 {
		return errors.New("no instruments")
	}
	if a.Risk != nil {
		if err := a.Risk.Validate(); err != nil {
			return err
		}
	}
	return nil
}
