package config

const (
	defaultDataDir       = "~/.local/share/rostrum"
	defaultStagingDir    = "~/.local/share/rostrum/staging"
	defaultMediaDir      = "~/.local/share/rostrum/media"
	defaultTranscriptDir = "~/.local/share/rostrum/transcripts"
	defaultLogDir        = "~/.local/share/rostrum/logs"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultQueuePollInterval        = 5
	defaultErrorRetryInterval       = 10
	defaultMaxAttempts              = 3
	defaultStuckThresholdMinutes    = 30
	defaultDiscoveryIntervalMinutes = 60
	defaultResolveWorkers           = 2
	defaultFetchWorkers             = 2
	defaultTranscribeWorkers        = 1
	defaultResolveTimeout           = 120
	defaultFetchTimeout             = 7200
	defaultTranscribeTimeout        = 14400

	defaultLookbackDays = 2
	defaultBackfillDays = 60

	defaultHouseArchiveURL    = "https://house.mi.gov/VideoArchive"
	defaultHouseVideoFilesURL = "https://www.house.mi.gov/ArchiveVideoFiles"
	defaultHousePlayerURL     = "https://house.mi.gov/VideoArchivePlayer"

	defaultSenateRecentFilesURL    = "https://2kbyogxrg4.execute-api.us-west-2.amazonaws.com/61b3adc8124d7d000891ca5c/home/recent"
	defaultSenateResolveURL        = "https://imd0mxanj2.execute-api.us-west-2.amazonaws.com/upload/get"
	defaultSenateSiteID            = "61b3adc8124d7d000891ca5c"
	defaultSenatePlayerURL         = "https://cloud.castus.tv/vod/misenate/video"
	defaultSenateStreamFallbackURL = "https://dlttx48mxf9m3.cloudfront.net/outputs"

	defaultWhisperXModel       = "large-v3-turbo"
	defaultWhisperXDevice      = "auto"
	defaultWhisperXComputeType = "auto"
	defaultTranscribeLanguage  = "en"
	defaultWhisperXCacheDir    = "~/.local/share/rostrum/cache/whisperx"

	defaultFetchMinFreeGiB   = 5
	defaultFetchRequestTime  = 120
	defaultNotifyRequestTime = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:       defaultDataDir,
			StagingDir:    defaultStagingDir,
			MediaDir:      defaultMediaDir,
			TranscriptDir: defaultTranscriptDir,
			LogDir:        defaultLogDir,
		},
		Workflow: Workflow{
			QueuePollInterval:        defaultQueuePollInterval,
			ErrorRetryInterval:       defaultErrorRetryInterval,
			MaxAttempts:              defaultMaxAttempts,
			StuckThresholdMinutes:    defaultStuckThresholdMinutes,
			DiscoveryIntervalMinutes: defaultDiscoveryIntervalMinutes,
			ResolveWorkers:           defaultResolveWorkers,
			FetchWorkers:             defaultFetchWorkers,
			TranscribeWorkers:        defaultTranscribeWorkers,
			ResolveTimeout:           defaultResolveTimeout,
			FetchTimeout:             defaultFetchTimeout,
			TranscribeTimeout:        defaultTranscribeTimeout,
		},
		Discovery: Discovery{
			Sources:      []string{"house", "senate"},
			LookbackDays: defaultLookbackDays,
			BackfillDays: defaultBackfillDays,
		},
		House: HouseSource{
			ArchiveURL:    defaultHouseArchiveURL,
			VideoFilesURL: defaultHouseVideoFilesURL,
			PlayerURL:     defaultHousePlayerURL,
		},
		Senate: SenateSource{
			RecentFilesURL:    defaultSenateRecentFilesURL,
			ResolveURL:        defaultSenateResolveURL,
			SiteID:            defaultSenateSiteID,
			PlayerURL:         defaultSenatePlayerURL,
			StreamFallbackURL: defaultSenateStreamFallbackURL,
		},
		Transcription: Transcription{
			Model:       defaultWhisperXModel,
			Device:      defaultWhisperXDevice,
			ComputeType: defaultWhisperXComputeType,
			Language:    defaultTranscribeLanguage,
			CacheDir:    defaultWhisperXCacheDir,
		},
		Fetch: Fetch{
			MinFreeGiB:     defaultFetchMinFreeGiB,
			RequestTimeout: defaultFetchRequestTime,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTime,
			Discovery:      true,
			Transcription:  true,
			Recovery:       true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
