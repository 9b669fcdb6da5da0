package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateDiscovery(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.MediaDir) == "" {
		return errors.New("paths.media_dir must be set")
	}
	if strings.TrimSpace(c.Paths.TranscriptDir) == "" {
		return errors.New("paths.transcript_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":        c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval":       c.Workflow.ErrorRetryInterval,
		"workflow.max_attempts":               c.Workflow.MaxAttempts,
		"workflow.stuck_threshold_minutes":    c.Workflow.StuckThresholdMinutes,
		"workflow.discovery_interval_minutes": c.Workflow.DiscoveryIntervalMinutes,
		"workflow.resolve_workers":            c.Workflow.ResolveWorkers,
		"workflow.fetch_workers":              c.Workflow.FetchWorkers,
		"workflow.transcribe_workers":         c.Workflow.TranscribeWorkers,
		"workflow.resolve_timeout":            c.Workflow.ResolveTimeout,
		"workflow.fetch_timeout":              c.Workflow.FetchTimeout,
		"workflow.transcribe_timeout":         c.Workflow.TranscribeTimeout,
		"notifications.request_timeout":       c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDiscovery() error {
	if len(c.Discovery.Sources) == 0 {
		return errors.New("discovery.sources must include at least one source")
	}
	for _, source := range c.Discovery.Sources {
		switch strings.ToLower(strings.TrimSpace(source)) {
		case "house", "senate":
		default:
			return fmt.Errorf("discovery.sources contains unknown source %q", source)
		}
	}
	if c.Discovery.LookbackDays <= 0 {
		return errors.New("discovery.lookback_days must be positive")
	}
	if c.Discovery.BackfillDays < c.Discovery.LookbackDays {
		return errors.New("discovery.backfill_days must be at least discovery.lookback_days")
	}
	return nil
}

func (c *Config) validateSources() error {
	if c.SourceEnabled("house") {
		if strings.TrimSpace(c.House.ArchiveURL) == "" {
			return errors.New("house.archive_url must be set when house discovery is enabled")
		}
		if strings.TrimSpace(c.House.VideoFilesURL) == "" {
			return errors.New("house.video_files_url must be set when house discovery is enabled")
		}
	}
	if c.SourceEnabled("senate") {
		if strings.TrimSpace(c.Senate.RecentFilesURL) == "" {
			return errors.New("senate.recent_files_url must be set when senate discovery is enabled")
		}
		if strings.TrimSpace(c.Senate.ResolveURL) == "" {
			return errors.New("senate.resolve_url must be set when senate discovery is enabled")
		}
		if strings.TrimSpace(c.Senate.SiteID) == "" {
			return errors.New("senate.site_id must be set when senate discovery is enabled")
		}
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if strings.TrimSpace(c.Transcription.Model) == "" {
		return errors.New("transcription.model must be set")
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.MinFreeGiB < 0 {
		return errors.New("fetch.min_free_gib must be >= 0")
	}
	if c.Fetch.RequestTimeout <= 0 {
		return errors.New("fetch.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
