// Package logging is the logging facade of the MPC runtime.
//
// Logger wraps the subset of log/slog the runtime needs, with a context on
// every call:
//
//	logger := logging.New(nil) // slog.Default()
//	logger = logger.With(logging.Player(1))
//	logger.Info(ctx, "runtime started", "players", 3, "threshold", 1)
//
// Tests that do not care about output use Discard().
//
// # Sensitive values
//
// Field elements held by the runtime are shares of secrets. They are never
// logged; use Redacted to record that a value was left out:
//
//	logger.Debug(ctx, "share sent", logging.Player(to), logging.PC(stack), logging.Redacted("share"))
package logging
