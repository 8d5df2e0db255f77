// Package config handles configuration loading for mcp-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  session_secret: "${MCP_GATEWAY_SESSION_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  jwks_fetch_timeout: "10s"
//	cache:
//	  server_ttl: "2m"
//	  server_access_ttl: "5m"
//	  jwks_ttl: "10m"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database:
//
//	database:
//	  path: "/var/lib/mcp-gateway/gateway.db"
//
// Authentication:
//
//	auth:
//	  session_secret: "${MCP_GATEWAY_SESSION_SECRET}"  # Required
//	  jwks_fetch_timeout: "10s"
//
// Streaming sessions:
//
//	sessions:
//	  keep_alive_interval: "30s"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Metrics:
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// # Usage
//
//	cfg, err := config.Load("/etc/mcp-gateway/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
