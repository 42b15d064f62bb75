// Package config provides configuration management for the claimforge
// compliance engine.
//
// Configuration is loaded from YAML with environment variable overrides.
// Values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides (CLAIMFORGE_SECTION_FIELD)
//  4. Validation (fails fast if invalid)
//
// For example CLAIMFORGE_STORE_DSN overrides store.dsn and
// CLAIMFORGE_SOURCES_MUE_LOCAL_PATH overrides sources.mue.local_path.
//
// # Example
//
//	store:
//	  driver: sqlite
//	  dsn: data/rules.db
//	sources:
//	  download_dir: data/downloads
//	  ptp:
//	    siblings: true
//	refresh:
//	  schedule: "0 4 * * 1"
//	validation:
//	  bypass_modifiers: ["25", "59", "XE", "XP", "XS", "XU"]
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
package config
