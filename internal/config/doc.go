// Package config loads, normalizes, and validates castkeep configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours the CASTKEEP_DATA_DIR environment fallback. Every
// subscription-level setting lives in [defaults] and may be overridden per
// subscription id under [subscriptions."<id>"]; ForSubscription resolves the
// effective values for one subscription.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
