// Package log builds gowget's slog loggers.
//
// Every logger wraps its handler in a SecureHandler, which masks values
// that should not end up in logs a user may share:
//   - HTTP headers such as Authorization and Cookie
//   - attributes whose key names a password, token or session
//   - bearer, basic and JWT credentials found in any string value
//   - passwords and token query parameters inside logged URLs
//
// Usage:
//
//	logger, closer, err := log.New(os.Stderr, log.Options{Verbose: true, File: path})
//	if err != nil {
//	    return err
//	}
//	defer closer.Close()
//	slog.SetDefault(logger)
//
// Loggers are also handed to tornago, which logs through slog.
package log
