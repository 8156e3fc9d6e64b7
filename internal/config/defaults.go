package config

const (
	defaultConfigPath           = "~/.config/nightcore/config.toml"
	defaultTempDir              = "~/musica/nightcore_temp"
	defaultLogDir               = "~/.local/share/nightcore/logs"
	defaultAPIBind              = "127.0.0.1:8000"
	defaultMinFreeMiB           = 512
	defaultSweepIntervalSeconds = 60
	defaultSweepExpirySeconds   = 120
	defaultYtDlpBinary          = "yt-dlp"
	defaultFFmpegBinary         = "ffmpeg"
	defaultToolTimeoutSeconds   = 300
	defaultExtractorArgs        = "youtube:player_client=ios,android_creator;player_skip=webpage,configs"
	defaultCookiesPath          = "~/.config/nightcore/cookies.txt"
	defaultCookiesFallback      = "/etc/secrets/cookies.txt"
	defaultCookiesMaxBytes      = 1 << 20
	defaultRateLimitRequests    = 5
	defaultRateLimitWindow      = 60
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			TempDir:    defaultTempDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
			MinFreeMiB: defaultMinFreeMiB,
		},
		Sweeper: Sweeper{
			IntervalSeconds: defaultSweepIntervalSeconds,
			ExpirySeconds:   defaultSweepExpirySeconds,
		},
		Tools: Tools{
			YtDlpBinary:    defaultYtDlpBinary,
			FFmpegBinary:   defaultFFmpegBinary,
			TimeoutSeconds: defaultToolTimeoutSeconds,
			ExtractorArgs:  defaultExtractorArgs,
		},
		Cookies: Cookies{
			Path:          defaultCookiesPath,
			FallbackPaths: []string{defaultCookiesFallback},
			MaxBytes:      defaultCookiesMaxBytes,
		},
		RateLimit: RateLimit{
			Enabled:       true,
			Requests:      defaultRateLimitRequests,
			WindowSeconds: defaultRateLimitWindow,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
