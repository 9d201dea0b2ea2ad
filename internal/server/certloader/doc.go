// Package certloader turns a PEM certificate and private key into an
// in-memory TLS identity.
//
// The private key is re-imported through a transient PKCS#8 buffer so the
// serving key is a fresh in-memory object; the transient buffer and the raw
// key bytes read from disk are overwritten with zeros before Load returns,
// on every path. Nothing is written to disk and the package does not log:
// callers decide how to report a LoadError.
//
// Reloader keeps the served certificate current when the files change.
package certloader
