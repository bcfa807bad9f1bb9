package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/memvra/dejavu/internal/config"
	"github.com/memvra/dejavu/internal/engine"
)

func newConfigCmd() *cobra.Command {
	var (
		initProject bool
		preset      string
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the effective configuration as TOML: defaults, then
~/.config/dejavu/config.toml, then .dejavu/config.toml, then environment keys.

Use --init to write the effective configuration to .dejavu/config.toml in the
current directory, optionally seeded from a preset (default, fast,
high-quality).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := findRoot()
			if err != nil {
				return err
			}
			cfg, err := config.Load(root)
			if err != nil {
				return err
			}
			if preset != "" {
				p, err := engine.Preset(preset)
				if err != nil {
					return err
				}
				cfg.Engine = p
				cfg.Preset = preset
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if initProject {
				cwd, err := os.Getwd()
				if err != nil {
					return err
				}
				// Keys stay in the global file or the environment.
				cfg.Keys = config.KeysConfig{}
				if err := config.SaveProject(cwd, cfg); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", config.ProjectConfigPath(cwd))
				return nil
			}

			cfg.Keys = redactKeys(cfg.Keys)
			return config.Encode(os.Stdout, cfg)
		},
	}

	cmd.Flags().BoolVar(&initProject, "init", false, "write .dejavu/config.toml in the current directory")
	cmd.Flags().StringVar(&preset, "preset", "", "engine preset: default, fast, high-quality")
	return cmd
}

func redactKeys(k config.KeysConfig) config.KeysConfig {
	redact := func(s string) string {
		if len(s) <= 8 {
			if s == "" {
				return ""
			}
			return "****"
		}
		return s[:4] + "****" + s[len(s)-4:]
	}
	return config.KeysConfig{OpenAI: redact(k.OpenAI), Gemini: redact(k.Gemini)}
}
