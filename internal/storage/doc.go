// Package storage persists the listing cache and the bot's small amount of
// mutable state.
//
// It stores:
//   - the listing cache (the Set committed by the last check cycle)
//   - settings changed at runtime (notification channel, interval)
//   - an append-only audit log of operator actions
//
// Two drivers exist: "file" (JSON files next to each other) and "sqlite".
package storage
