// Package handler provides the utility endpoints served next to the asset
// bundle: /healthz, /readyz and /version.
package handler
