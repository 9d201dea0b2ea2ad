// Package config defines the statichost server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values and list normalization
//   - verify.go: startup validation returning *ConfigurationError
//   - sanitize.go: secret masking for logging
//
// Configuration is loaded via internal/infra/confloader from a YAML file and
// STATICHOST_ environment variables. It is validated once at startup and
// treated as immutable afterwards; only log.level is re-applied on reload.
package config
