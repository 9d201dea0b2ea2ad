// Package health computes liveness, readiness and version reports.
//
// Readiness is evaluated fresh on every call: the content root must be a
// directory, the log directory must accept a test write, and when TLS is
// configured the certificate pair must load and be unexpired.
package health
