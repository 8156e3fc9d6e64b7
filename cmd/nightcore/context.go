package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"nightcore/internal/config"
	"nightcore/internal/daemonctl"
)

type commandContext struct {
	configFlag *string
	addrFlag   *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, addrFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		addrFlag:   addrFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// client targets --addr when given and the configured bind address otherwise.
func (c *commandContext) client() *daemonctl.Client {
	cfg := c.configValue()
	if c.addrFlag != nil {
		if addr := strings.TrimSpace(*c.addrFlag); addr != "" {
			var opts []daemonctl.ClientOption
			if cfg != nil {
				opts = append(opts, daemonctl.WithToken(cfg.Paths.APIToken))
			}
			return daemonctl.NewClient(addr, opts...)
		}
	}
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	return daemonctl.NewClientFromConfig(cfg)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
