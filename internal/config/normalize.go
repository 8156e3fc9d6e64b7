package config

import (
	"fmt"
	"net"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	if err := c.normalizeCookies(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if value, ok := os.LookupEnv("NIGHTCORE_TEMP_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.TempDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = defaultTempDir
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if port, ok := os.LookupEnv("PORT"); ok && strings.TrimSpace(port) != "" {
		// Hosted deployments hand the listen port in through PORT.
		c.Paths.APIBind = net.JoinHostPort("0.0.0.0", strings.TrimSpace(port))
	}
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if value, ok := os.LookupEnv("NIGHTCORE_API_TOKEN"); ok {
		c.Paths.APIToken = value
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.MinFreeMiB < 0 {
		c.Paths.MinFreeMiB = 0
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.YtDlpBinary = strings.TrimSpace(c.Tools.YtDlpBinary)
	if c.Tools.YtDlpBinary == "" {
		c.Tools.YtDlpBinary = defaultYtDlpBinary
	}
	c.Tools.FFmpegBinary = strings.TrimSpace(c.Tools.FFmpegBinary)
	if c.Tools.FFmpegBinary == "" {
		c.Tools.FFmpegBinary = defaultFFmpegBinary
	}
	c.Tools.ExtractorArgs = strings.TrimSpace(c.Tools.ExtractorArgs)
}

func (c *Config) normalizeCookies() error {
	var err error
	if strings.TrimSpace(c.Cookies.Path) == "" {
		c.Cookies.Path = defaultCookiesPath
	}
	if c.Cookies.Path, err = expandPath(c.Cookies.Path); err != nil {
		return fmt.Errorf("cookies.path: %w", err)
	}
	paths := make([]string, 0, len(c.Cookies.FallbackPaths))
	seen := map[string]struct{}{c.Cookies.Path: {}}
	for _, candidate := range c.Cookies.FallbackPaths {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		expanded, err := expandPath(strings.TrimSpace(candidate))
		if err != nil {
			return fmt.Errorf("cookies.fallback_paths: %w", err)
		}
		if _, dup := seen[expanded]; dup {
			continue
		}
		seen[expanded] = struct{}{}
		paths = append(paths, expanded)
	}
	c.Cookies.FallbackPaths = paths
	if c.Cookies.MaxBytes <= 0 {
		c.Cookies.MaxBytes = defaultCookiesMaxBytes
	}
	return nil
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
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
