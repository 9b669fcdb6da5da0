// Package discovery coordinates periodic scans of the chamber archives. One
// scan asks every enabled scraper for recordings inside a lookback window and
// registers anything new. Sources fail independently: a senate outage never
// blocks house discovery, and rediscovering a known recording is a no-op
// regardless of how far its pipeline has progressed.
package discovery
