// Package main provides the entry point for statichost-server.
//
// statichost-server serves a pre-built static asset bundle over HTTP or
// HTTPS behind a fixed request pipeline: exception containment, forwarded
// header normalization, HTTPS enforcement, authentication and
// authorization, request logging, compression and rate limiting.
//
// Usage:
//
//	statichost-server [--config config.yaml] [--env-prefix STATICHOST_]
//	statichost-server --config config.yaml --check
//
// Configuration is read from the YAML file and then from environment
// variables carrying the prefix (STATICHOST_ by default), where "__"
// separates nesting levels:
//
//	STATICHOST_HOSTING__USE_HTTPS=true
//	STATICHOST_AUTH__FALLBACK_POLICY=allow_all
//
// Changes to log.level in the configuration file are applied without a
// restart; every other setting needs one.
package main
