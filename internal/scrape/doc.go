// Package scrape discovers candidate recordings on the public chamber
// archives. Each scraper turns one chamber's archive listing into a flat
// slice of candidates filtered to a recency window; it never touches the
// registry and never resolves stream URLs.
package scrape
