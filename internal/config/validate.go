package config

import (
	"errors"
	"fmt"
	"strconv"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := validateDefaults("defaults", c.Defaults); err != nil {
		return err
	}
	for key := range c.Subscriptions {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("subscriptions.%q: key must be a positive subscription id", key)
		}
		// Validate the merged view so a bad override is reported under its own key.
		if err := validateDefaults("subscriptions."+key, c.ForSubscription(id).Defaults); err != nil {
			return err
		}
	}
	if err := c.validateNetwork(); err != nil {
		return err
	}
	return c.validateLogging()
}

func validateDefaults(section string, d Defaults) error {
	if d.NamingPattern == "" {
		return fmt.Errorf("%s.naming_pattern must be set", section)
	}
	if d.SubscriptionFailDays < 0 || d.EpisodeFailDays < 0 {
		return fmt.Errorf("%s: fail days must be non-negative", section)
	}
	if d.SubscriptionFailAttempts < 0 || d.EpisodeFailAttempts < 0 {
		return fmt.Errorf("%s: fail attempts must be non-negative", section)
	}
	if _, err := ParseRenameTypes(d.RenameTypes); err != nil {
		return fmt.Errorf("%s.rename_types: %w", section, err)
	}
	return nil
}

func (c *Config) validateNetwork() error {
	if c.Network.RequestsPerMinute < 0 {
		return errors.New("network.requests_per_minute must be non-negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be non-negative")
	}
	return nil
}
