package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"nightcore/internal/config"
)

// Prompter asks the operator for configuration values. Tests swap in a
// scripted implementation.
type Prompter interface {
	Input(message string, defaultValue string) (string, error)
	Confirm(message string, defaultValue bool) (bool, error)
}

// SurveyPrompter implements Prompter on an interactive terminal.
type SurveyPrompter struct{}

func (p *SurveyPrompter) Input(message string, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Input{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (p *SurveyPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, err
	}
	return result, nil
}

// DefaultPrompter is used by config init --interactive.
var DefaultPrompter Prompter = &SurveyPrompter{}

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool
	var interactive bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					if !interactive {
						return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
					}
					replace, err := DefaultPrompter.Confirm(fmt.Sprintf("%s already exists. Overwrite?", target), false)
					if err != nil {
						return fmt.Errorf("prompt cancelled: %w", err)
					}
					if !replace {
						fmt.Fprintln(cmd.OutOrStdout(), "Keeping existing configuration")
						return nil
					}
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			if !interactive {
				if err := config.CreateSample(target); err != nil {
					return fmt.Errorf("create sample config: %w", err)
				}
				fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
				fmt.Fprintln(out, "Edit the file, then upload a cookie jar with `nightcore cookies set <file>`.")
				return nil
			}

			cfg, err := promptConfig(DefaultPrompter)
			if err != nil {
				return err
			}
			content, err := config.Encode(cfg)
			if err != nil {
				return err
			}
			if err := config.WriteConfig(target, content); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Prompt for the common settings instead of writing the sample")
	return cmd
}

func promptConfig(prompter Prompter) (*config.Config, error) {
	cfg := config.Default()

	tempDir, err := prompter.Input("Where should audio files be written?", cfg.Paths.TempDir)
	if err != nil {
		return nil, fmt.Errorf("prompt cancelled: %w", err)
	}
	cfg.Paths.TempDir = strings.TrimSpace(tempDir)

	bind, err := prompter.Input("Address for the HTTP API?", cfg.Paths.APIBind)
	if err != nil {
		return nil, fmt.Errorf("prompt cancelled: %w", err)
	}
	cfg.Paths.APIBind = strings.TrimSpace(bind)

	token, err := prompter.Input("Bearer token required for cookie uploads (blank for none)?", "")
	if err != nil {
		return nil, fmt.Errorf("prompt cancelled: %w", err)
	}
	cfg.Paths.APIToken = strings.TrimSpace(token)

	cookiePath, err := prompter.Input("Cookie jar path?", cfg.Cookies.Path)
	if err != nil {
		return nil, fmt.Errorf("prompt cancelled: %w", err)
	}
	cfg.Cookies.Path = strings.TrimSpace(cookiePath)

	expiry, err := prompter.Input("Delete generated files after how many seconds?", strconv.Itoa(cfg.Sweeper.ExpirySeconds))
	if err != nil {
		return nil, fmt.Errorf("prompt cancelled: %w", err)
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(expiry))
	if err != nil || seconds <= 0 {
		return nil, fmt.Errorf("expiry must be a positive number of seconds, got %q", expiry)
	}
	cfg.Sweeper.ExpirySeconds = seconds

	limit, err := prompter.Confirm("Rate limit /generate per client?", cfg.RateLimit.Enabled)
	if err != nil {
		return nil, fmt.Errorf("prompt cancelled: %w", err)
	}
	cfg.RateLimit.Enabled = limit

	return &cfg, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
