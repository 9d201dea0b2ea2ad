// Package shutdown coordinates graceful process termination.
//
// A Handler collects named hooks and runs them in reverse registration
// order once the process receives SIGINT or SIGTERM, Trigger is called, or
// the context passed to Wait is cancelled:
//
//	h := shutdown.NewHandler(30*time.Second, log)
//	h.OnShutdown("http", srv.Shutdown)
//	if err := h.Wait(ctx); err != nil { ... }
package shutdown
