package config

const (
	defaultDataDir                 = "~/.local/share/kaizen"
	defaultCacheDir                = "~/.cache/kaizen/speech"
	defaultLogDir                  = "~/.local/share/kaizen/logs"
	defaultAPIBind                 = "127.0.0.1:8547"
	defaultSpeechBaseURL           = "http://127.0.0.1:5050/v1/synthesize"
	defaultSpeechVoice             = "zh-CN-XiaoxiaoNeural"
	defaultSpeechTimeoutSeconds    = 60
	defaultSpeechRetryAttempts     = 3
	defaultSpeechFormat            = "mp3"
	defaultFFprobeBinary           = "ffprobe"
	defaultNarrationSpeed          = 5.0
	defaultNarrationBaselineSpeed  = 5.0
	defaultSubtitleMode            = "combined"
	defaultPlaybackRate            = 1.0
	defaultDriftThresholdMillis    = 150
	defaultCompletionEpsilonMillis = 80
	defaultAdvanceDelayMillis      = 150
	defaultTickIntervalMillis      = 50
	defaultSubtitleFontSize        = 20
	defaultSubtitleTextColor       = "#FFFFFF"
	defaultSubtitleHighlightColor  = "#FFD200"
	defaultSubtitleBackgroundColor = "#000000"
	defaultSubtitleOpacity         = 0.6
	defaultSubtitleMaxLines        = 2
	defaultSubtitleLineWidth       = 32
	defaultSubtitlePositionX       = 50
	defaultSubtitlePositionY       = 85
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			CacheDir: defaultCacheDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Speech: Speech{
			BaseURL:        defaultSpeechBaseURL,
			Voice:          defaultSpeechVoice,
			Format:         defaultSpeechFormat,
			TimeoutSeconds: defaultSpeechTimeoutSeconds,
			RetryAttempts:  defaultSpeechRetryAttempts,
			FFprobeBinary:  defaultFFprobeBinary,
		},
		Narration: Narration{
			Enabled:       true,
			Speed:         defaultNarrationSpeed,
			BaselineSpeed: defaultNarrationBaselineSpeed,
			SubtitleMode:  defaultSubtitleMode,
		},
		Playback: Playback{
			Rate:                    defaultPlaybackRate,
			DriftThresholdMillis:    defaultDriftThresholdMillis,
			CompletionEpsilonMillis: defaultCompletionEpsilonMillis,
			AdvanceDelayMillis:      defaultAdvanceDelayMillis,
			TickIntervalMillis:      defaultTickIntervalMillis,
		},
		Subtitles: Subtitles{
			FontSize:          defaultSubtitleFontSize,
			TextColor:         defaultSubtitleTextColor,
			HighlightColor:    defaultSubtitleHighlightColor,
			BackgroundColor:   defaultSubtitleBackgroundColor,
			BackgroundOpacity: defaultSubtitleOpacity,
			MaxLines:          defaultSubtitleMaxLines,
			LineWidth:         defaultSubtitleLineWidth,
			PositionX:         defaultSubtitlePositionX,
			PositionY:         defaultSubtitlePositionY,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
