package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codequarry/quarry/configs"
	"github.com/codequarry/quarry/internal/config"
	"github.com/codequarry/quarry/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage quarry configuration files.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/quarry/config.yaml)
  3. Project config (.quarry.yaml)
  4. Environment variables (QUARRY_*)`,
		Example: `  # Create a project config from the annotated template
  quarry config init

  # Create the machine-wide user config instead
  quarry config init --user

  # Show the effective configuration (merged from all sources)
  quarry config show

  # Print the user config file path
  quarry config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force bool
		user  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from a template",
		Long: `Create a configuration file from the annotated template.

By default this writes .quarry.yaml in the project root, the place
for project-specific settings such as exclude patterns and search
weights. With --user it writes the machine-wide config at
~/.config/quarry/config.yaml (or $XDG_CONFIG_HOME/quarry/config.yaml)
for settings that apply to every project, such as logging.`,
		Example: `  # Create a project config in the current project
  quarry config init

  # Create the user config
  quarry config init --user

  # Overwrite an existing file with the template
  quarry config init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force, user)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	cmd.Flags().BoolVar(&user, "user", false, "Create the machine-wide user config instead of the project config")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the effective configuration after merging all sources.

By default, shows the merged configuration from:
  1. Built-in defaults
  2. User config (~/.config/quarry/config.yaml)
  3. Project config (.quarry.yaml)
  4. Environment variables (QUARRY_*)`,
		Example: `  # Show merged configuration
  quarry config show

  # Show as JSON
  quarry config show --json

  # Show only the project config file
  quarry config show --source project`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, project, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		Long:  `Print the path to the machine-wide user configuration file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.GetUserConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func runConfigInit(cmd *cobra.Command, force, user bool) error {
	out := output.New(cmd.OutOrStdout())

	var configPath, template, scope string
	if user {
		path, err := config.GetUserConfigPath()
		if err != nil {
			return err
		}
		configPath = path
		template = configs.UserConfigTemplate
		scope = "user"
	} else {
		root, err := config.FindProjectRoot(".")
		if err != nil {
			return err
		}
		configPath = filepath.Join(root, ".quarry.yaml")
		template = configs.ProjectConfigTemplate
		scope = "project"
	}

	if _, err := os.Stat(configPath); err == nil && !force {
		out.Warning("Configuration already exists")
		out.Statusf("📁", "Location: %s", configPath)
		out.Newline()
		out.Status("💡", "Use --force to overwrite it with the template")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(template), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Successf("Created %s configuration", scope)
	out.Statusf("📁", "Location: %s", configPath)
	out.Newline()
	out.Status("💡", "Edit the file, then run 'quarry config show' to verify")

	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	out := output.New(cmd.OutOrStdout())

	var cfg *config.Config
	var sourceDesc string

	switch source {
	case "merged":
		root, err := config.FindProjectRoot(".")
		if err != nil {
			return err
		}
		cfg, err = config.Load(root)
		if err != nil {
			return err
		}
		sourceDesc = "merged (defaults + user + project + env)"

	case "user":
		configPath, err := config.GetUserConfigPath()
		if err != nil {
			return err
		}
		exists, err := config.UserConfigExists()
		if err != nil {
			return err
		}
		if !exists {
			out.Warning("No user configuration file found")
			out.Statusf("📁", "Expected at: %s", configPath)
			out.Status("💡", "Run 'quarry config init --user' to create one")
			return nil
		}
		cfg, err = parseConfigFile(configPath)
		if err != nil {
			return err
		}
		sourceDesc = fmt.Sprintf("user (%s)", configPath)

	case "project":
		root, err := config.FindProjectRoot(".")
		if err != nil {
			return err
		}
		configPath := findProjectConfigFile(root)
		if configPath == "" {
			out.Warning("No project configuration file found")
			out.Statusf("📁", "Expected at: %s", filepath.Join(root, ".quarry.yaml"))
			out.Status("💡", "Run 'quarry config init' to create one")
			return nil
		}
		cfg, err = parseConfigFile(configPath)
		if err != nil {
			return err
		}
		sourceDesc = fmt.Sprintf("project (%s)", configPath)

	case "defaults":
		cfg = config.NewConfig()
		sourceDesc = "defaults (built-in)"

	default:
		return fmt.Errorf("invalid source: %s (use: merged, user, project, defaults)", source)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	out.Statusf("📋", "Configuration source: %s", sourceDesc)
	out.Newline()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	return nil
}

// parseConfigFile reads one config file over the built-in defaults,
// without merging the other sources.
func parseConfigFile(path string) (*config.Config, error) {
	cfg := config.NewConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// findProjectConfigFile returns the project config path under root, or
// "" when none exists.
func findProjectConfigFile(root string) string {
	for _, name := range []string{".quarry.yaml", ".quarry.yml"} {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
