// Package config handles configuration loading for hawkgate.
//
// # Overview
//
// Configuration is loaded from YAML files, or TOML files when the path ends
// in .toml, with environment variable expansion. Missing values get defaults
// and the result is validated before use.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from HAWKGATE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/hawkgate/config.yaml
//  3. ~/.config/hawkgate/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	database:
//	  path: "${HAWKGATE_DATA}/sessions.db"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
//	server:
//	  http_addr: "localhost:8080"
//
//	database:
//	  path: "/var/lib/hawkgate/sessions.db"
//
//	hawk:
//	  algorithms: ["sha256"]
//	  timestamp_skew: "60s"       # accepted |now - ts|
//	  localtime_offset: "0s"      # added to server time before comparing
//	  nonce_window: "2m"          # at least twice timestamp_skew
//	  nonce_cache_size: 100000
//	  verify_payload: false
//	  host_header: ""             # e.g. X-Forwarded-Host
//
//	sessions:
//	  algorithm: "sha256"
//	  token_header: "Hawk-Session-Token"
//
//	routes:
//	  - path: "/require-session"
//	  - path: "/require-or-create-session"
//	    auto_create: true
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// # Usage
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	opts, err := cfg.Hawk.VerifierOptions()
package config
