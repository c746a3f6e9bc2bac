// Package httpserver runs an http.Handler until a context is cancelled and
// then shuts it down gracefully.
//
//	srv := httpserver.New(cfg, httpserver.WithLogger(log))
//	err := srv.Run(ctx, router)
//
// Signal handling is left to the caller, typically through
// signal.NotifyContext. HealthCheckHandler serves liveness and readiness
// probes from a set of named checks.
//
// Listen and serve errors are wrapped with ErrStart and shutdown errors with
// ErrShutdown.
package httpserver
