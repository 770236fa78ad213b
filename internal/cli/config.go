package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/lossledger/internal/model"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads the configuration layered over the built-in defaults.
// A missing default config file is not an error; a missing explicit one is.
func LoadConfig(v *viper.Viper) (*model.Config, error) {
	defaults, err := defaultSettings()
	if err != nil {
		return nil, err
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var c model.Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &c, nil
}

// defaultSettings flattens the default config into viper's key space so
// environment variables can override any of it.
func defaultSettings() (map[string]any, error) {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return nil, eris.Wrap(err, "config: marshal defaults")
	}
	settings := make(map[string]any)
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal defaults")
	}
	return settings, nil
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage lossledger configuration",
	Long: `Manage lossledger configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (LOSSLEDGER_*, e.g. LOSSLEDGER_LOG_LEVEL)
3. Config file (~/.lossledger/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n\n", used)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "No configuration file found (using defaults)\n\n")
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return eris.Wrap(err, "marshal config")
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitPath string

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long:  `Create a configuration file holding every default, at ~/.lossledger/config.yaml unless --path is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configInitPath
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return eris.Wrap(err, "find home directory")
			}
			path = filepath.Join(home, ".lossledger", "config.yaml")
		}

		if err := writeDefaultConfig(path); err != nil {
			return err
		}
		cmd.Printf("Created default configuration: %s\n", path)
		return nil
	},
}

func writeDefaultConfig(path string) (err error) {
	if _, err := os.Stat(path); err == nil {
		return eris.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "create config directory")
	}

	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return eris.Wrap(err, "marshal config")
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "create config file")
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = eris.Wrap(closeErr, "close config file")
		}
	}()

	header := "# lossledger configuration\n" +
		"#\n" +
		"# Configuration hierarchy (highest to lowest priority):\n" +
		"#   1. CLI flags\n" +
		"#   2. Environment variables (LOSSLEDGER_*)\n" +
		"#   3. This config file\n" +
		"#   4. Built-in defaults\n" +
		"#\n" +
		"# Empty asset paths use the lookup tables built into the binary.\n\n"
	if _, err := f.WriteString(header); err != nil {
		return eris.Wrap(err, "write config")
	}
	if _, err := f.Write(data); err != nil {
		return eris.Wrap(err, "write config")
	}
	return nil
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPath, "path", "", "where to write the file")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
