// Package logx configures listingbot's structured logging.
//
// Logger is a thin value type over zerolog that keeps:
//   - console output readable (short timestamp + short caller)
//   - file output JSON-structured
//   - an optional chat sink that mirrors WARN+ lines into a Telegram chat
//     (min-level filter + rate limit, never blocks the caller)
package logx
