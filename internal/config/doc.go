/*
Package config provides configuration management for the inventory router.

Configuration is assembled from three sources with increasing precedence:

	┌─────────────────────────────────────────────┐
	│        Environment Variables                │ ← Highest Priority
	│            (HGINV_*)                        │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│         Configuration File                  │
	│            (YAML format)                    │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Default Values                    │ ← Lowest Priority
	└─────────────────────────────────────────────┘

# Sections

  - global: log level and encoder
  - router: connector lifetime, local read serialization, fan-out width
  - connector: per-call timeout and RPC path prefix for remote services
  - local: the local inventory store (driver and DSN)
  - identity: static directory of foreign users and their home inventories
  - server: the inventory RPC listener
  - diagnostics: thresholds for the concurrency monitor
  - metrics: Prometheus exporter

# Usage

	cfg := config.NewDefault()
	if err := cfg.LoadFromFile("hginventory.yaml"); err != nil {
		return err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

Validate reports a MISSING_LOCAL_SERVICE error when no local store is
configured; every other problem is INVALID_CONFIG.
*/
package config
