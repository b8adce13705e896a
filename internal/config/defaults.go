package config

const (
	defaultOutputDir          = "~/sumtube_results"
	defaultLogDir             = "~/.local/share/sumtube/logs"
	defaultYouTubeBaseURL     = "https://www.googleapis.com/youtube/v3"
	defaultYouTubeTimeout     = 30
	defaultOllamaBaseURL      = "http://localhost:11434"
	defaultModel              = "gpt-oss:20b"
	defaultTemperature        = 0.0
	defaultNumCtx             = 32 * 1024
	defaultOllamaTimeout      = 600
	defaultRawChunkSize       = 32 * 1024
	defaultOverlapSize        = 100
	defaultWorkers            = 2
	defaultBytesPerToken      = 4
	defaultReservedFraction   = 0.4
	defaultMinResponseBytes   = 256
	defaultNotifyTimeout      = 10
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		YouTube: YouTube{
			BaseURL:        defaultYouTubeBaseURL,
			Languages:      []string{"en"},
			TimeoutSeconds: defaultYouTubeTimeout,
		},
		Ollama: Ollama{
			BaseURL:        defaultOllamaBaseURL,
			Model:          defaultModel,
			Temperature:    defaultTemperature,
			NumCtx:         defaultNumCtx,
			TimeoutSeconds: defaultOllamaTimeout,
		},
		Chunking: Chunking{
			RawChunkSize: defaultRawChunkSize,
			OverlapSize:  defaultOverlapSize,
			Workers:      defaultWorkers,
		},
		Budget: Budget{
			BytesPerToken:    defaultBytesPerToken,
			ReservedFraction: defaultReservedFraction,
			MinResponseBytes: defaultMinResponseBytes,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Reports:        true,
			Errors:         true,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
