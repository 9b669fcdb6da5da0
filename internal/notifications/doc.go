// Package notifications delivers pipeline events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Per-category toggles let operators keep failure alerts while
// muting the chattier discovery summaries.
//
// Extend this package if you need alternative transports; all workflow code
// depends only on the simple Service interface.
package notifications
