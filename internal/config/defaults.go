package config

const (
	defaultStagingDir        = "~/.local/share/narrate/staging"
	defaultOutputDir         = "~/.local/share/narrate/output"
	defaultLogDir            = "~/.local/share/narrate/logs"
	defaultAPIBind           = "127.0.0.1:8977"
	defaultTTSBinary         = "edge-tts"
	defaultVoice             = "pt-BR-AntonioNeural"
	defaultTTSTimeout        = 120
	defaultDuckLevel         = 0.2
	defaultFadeMillis        = 50
	defaultMaxSpeedFactor    = 2.0
	defaultSubtitleFont      = "Arial"
	defaultSubtitleFontSize  = 24
	defaultSubtitlePrimary   = "&H00FFFFFF"
	defaultSubtitleOutlineBG = "&H00000000"
	defaultSubtitleOutline   = 2
	defaultSubtitleMarginV   = 50
	defaultContainer         = "mp4"
	defaultVideoCodec        = "libx264"
	defaultAudioCodec        = "aac"
	defaultEncodeTimeout     = 1800
	defaultPollInterval      = 2
	defaultErrorRetry        = 10
	defaultMaxConcurrent     = 2
	defaultDownloadTimeout   = 300
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		TTS: TTS{
			Binary:         defaultTTSBinary,
			Voice:          defaultVoice,
			TimeoutSeconds: defaultTTSTimeout,
		},
		Audio: Audio{
			DuckLevel:      defaultDuckLevel,
			FadeMillis:     defaultFadeMillis,
			MaxSpeedFactor: defaultMaxSpeedFactor,
		},
		Subtitles: Subtitles{
			FontName:      defaultSubtitleFont,
			FontSize:      defaultSubtitleFontSize,
			PrimaryColour: defaultSubtitlePrimary,
			OutlineColour: defaultSubtitleOutlineBG,
			Outline:       defaultSubtitleOutline,
			MarginV:       defaultSubtitleMarginV,
		},
		Output: Output{
			Container:     defaultContainer,
			VideoCodec:    defaultVideoCodec,
			AudioCodec:    defaultAudioCodec,
			EncodeTimeout: defaultEncodeTimeout,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetry,
			MaxConcurrentJobs:  defaultMaxConcurrent,
			DownloadTimeout:    defaultDownloadTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
