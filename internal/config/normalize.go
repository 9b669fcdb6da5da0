package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeDiscovery()
	c.normalizeSources()
	if err := c.normalizeTranscription(); err != nil {
		return err
	}
	c.normalizeFetch()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	if c.Paths.TranscriptDir, err = expandPath(c.Paths.TranscriptDir); err != nil {
		return fmt.Errorf("paths.transcript_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.MaxAttempts <= 0 {
		c.Workflow.MaxAttempts = defaultMaxAttempts
	}
	if c.Workflow.StuckThresholdMinutes <= 0 {
		c.Workflow.StuckThresholdMinutes = defaultStuckThresholdMinutes
	}
	if c.Workflow.DiscoveryIntervalMinutes <= 0 {
		c.Workflow.DiscoveryIntervalMinutes = defaultDiscoveryIntervalMinutes
	}
	if c.Workflow.ResolveWorkers <= 0 {
		c.Workflow.ResolveWorkers = defaultResolveWorkers
	}
	if c.Workflow.FetchWorkers <= 0 {
		c.Workflow.FetchWorkers = defaultFetchWorkers
	}
	if c.Workflow.TranscribeWorkers <= 0 {
		c.Workflow.TranscribeWorkers = defaultTranscribeWorkers
	}
	if c.Workflow.ResolveTimeout <= 0 {
		c.Workflow.ResolveTimeout = defaultResolveTimeout
	}
	if c.Workflow.FetchTimeout <= 0 {
		c.Workflow.FetchTimeout = defaultFetchTimeout
	}
	if c.Workflow.TranscribeTimeout <= 0 {
		c.Workflow.TranscribeTimeout = defaultTranscribeTimeout
	}
}

func (c *Config) normalizeDiscovery() {
	if len(c.Discovery.Sources) == 0 {
		c.Discovery.Sources = []string{"house", "senate"}
	}
	sources := make([]string, 0, len(c.Discovery.Sources))
	seen := make(map[string]struct{}, len(c.Discovery.Sources))
	for _, source := range c.Discovery.Sources {
		normalized := strings.ToLower(strings.TrimSpace(source))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		sources = append(sources, normalized)
	}
	c.Discovery.Sources = sources
	if c.Discovery.LookbackDays <= 0 {
		c.Discovery.LookbackDays = defaultLookbackDays
	}
	if c.Discovery.BackfillDays <= 0 {
		c.Discovery.BackfillDays = defaultBackfillDays
	}
}

func (c *Config) normalizeSources() {
	c.House.ArchiveURL = strings.TrimRight(strings.TrimSpace(c.House.ArchiveURL), "/")
	c.House.VideoFilesURL = strings.TrimRight(strings.TrimSpace(c.House.VideoFilesURL), "/")
	c.House.PlayerURL = strings.TrimRight(strings.TrimSpace(c.House.PlayerURL), "/")
	if c.House.PlayerURL == "" {
		c.House.PlayerURL = defaultHousePlayerURL
	}

	c.Senate.RecentFilesURL = strings.TrimSpace(c.Senate.RecentFilesURL)
	c.Senate.ResolveURL = strings.TrimSpace(c.Senate.ResolveURL)
	c.Senate.SiteID = strings.TrimSpace(c.Senate.SiteID)
	c.Senate.PlayerURL = strings.TrimRight(strings.TrimSpace(c.Senate.PlayerURL), "/")
	if c.Senate.PlayerURL == "" {
		c.Senate.PlayerURL = defaultSenatePlayerURL
	}
	c.Senate.StreamFallbackURL = strings.TrimRight(strings.TrimSpace(c.Senate.StreamFallbackURL), "/")
	if c.Senate.StreamFallbackURL == "" {
		c.Senate.StreamFallbackURL = defaultSenateStreamFallbackURL
	}
}

func (c *Config) normalizeTranscription() error {
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultWhisperXModel
	}
	c.Transcription.Device = strings.ToLower(strings.TrimSpace(c.Transcription.Device))
	if c.Transcription.Device == "" {
		c.Transcription.Device = defaultWhisperXDevice
	}
	c.Transcription.ComputeType = strings.ToLower(strings.TrimSpace(c.Transcription.ComputeType))
	if c.Transcription.ComputeType == "" {
		c.Transcription.ComputeType = defaultWhisperXComputeType
	}
	c.Transcription.Language = strings.TrimSpace(c.Transcription.Language)
	if c.Transcription.Language == "" {
		c.Transcription.Language = defaultTranscribeLanguage
	}
	if strings.TrimSpace(c.Transcription.CacheDir) == "" {
		c.Transcription.CacheDir = defaultWhisperXCacheDir
	}
	var err error
	if c.Transcription.CacheDir, err = expandPath(c.Transcription.CacheDir); err != nil {
		return fmt.Errorf("transcription.cache_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFetch() {
	if c.Fetch.MinFreeGiB < 0 {
		c.Fetch.MinFreeGiB = 0
	}
	if c.Fetch.RequestTimeout <= 0 {
		c.Fetch.RequestTimeout = defaultFetchRequestTime
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("ROSTRUM_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTime
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
