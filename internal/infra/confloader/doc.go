// Package confloader loads statichost configuration.
//
// It wraps koanf with a fixed source order (later sources win):
//
//  1. Defaults already present in the target struct
//  2. YAML configuration file
//  3. Environment variables (STATICHOST_ prefix)
//
// Environment keys use a double underscore to separate nesting levels, so a
// single underscore can stay part of a key name:
//
//	STATICHOST_HOSTING__HTTP_PORT=9090   -> hosting.http_port
//	STATICHOST_LOG__LEVEL=debug          -> log.level
//
// Watcher reports changes to the configuration file via fsnotify.
package confloader
