// Package logger provides adapters for popular logging libraries to
// work with blocktree's Logger interface.
//
// The standard library's slog.Logger already satisfies
// blocktree.Logger directly; these adapters cover zap and logrus.
//
// Example with zap:
//
//	zapLogger, _ := zap.NewProduction()
//	tree := blocktree.New(8, 8, bc, blocktree.WithLogger(logger.NewZap(zapLogger)))
package logger
