// Package logx configures listingd's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Optional notifier sink (min-level + rate limiting) so operators can
//     follow WARN+ lines from an ops chat
package logx
