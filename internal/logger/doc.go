// Package logger wraps zap for the packager binary:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing,
//   - leveled key-value shortcuts (DebugKV, InfoKV, WarnKV).
//
// Services take a context and pull the logger out of it, so a name or a set of
// fields attached once follows every record of a packaging run.
package logger
