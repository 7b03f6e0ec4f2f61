// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for linediff.
//
// Command: config [subcommand]
// Short:   View and modify configuration
//
// Subcommands:
//   show (default)      Display the effective configuration
//   get <key>           Print one value
//   set <key> <value>   Set a value in the config file
//   reset               Write the default configuration
//   path                Show configuration file path
//   keys                List every settable key
//
// Examples:
//   linediff config set diff.timeout_secs 10
//   linediff config set index.ignore_patterns ".git,*.log"
//   linediff --config ./linediff.json config show --json
package cli

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jeranaias/linediff/internal/config"
)

func configCommandBuilder() *cli.Command {
	return &cli.Command{
		Name:   "config",
		Usage:  "view and modify configuration",
		Flags:  []cli.Flag{newJSONFlag()},
		Action: configShowAction,
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "display the effective configuration",
				Flags:  []cli.Flag{newJSONFlag()},
				Action: configShowAction,
			},
			{
				Name:      "get",
				Usage:     "print one configuration value",
				ArgsUsage: "KEY",
				Flags:     []cli.Flag{newJSONFlag()},
				Action:    configGetAction,
			},
			{
				Name:      "set",
				Usage:     "set a value in the config file",
				ArgsUsage: "KEY VALUE",
				Action:    configSetAction,
			},
			{
				Name:   "reset",
				Usage:  "write the default configuration",
				Action: configResetAction,
			},
			{
				Name:   "path",
				Usage:  "show the configuration file path",
				Flags:  []cli.Flag{newJSONFlag()},
				Action: configPathAction,
			},
			{
				Name:   "keys",
				Usage:  "list every settable key",
				Action: configKeysAction,
			},
		},
	}
}

// configFilePath returns the file the config command edits: --config when
// given, else an existing default file, else the default TOML path.
func configFilePath(cmd *cli.Command) (string, error) {
	if path := cmd.Root().String("config"); path != "" {
		return path, nil
	}
	tomlPath, err := config.ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	jsonPath, err := config.ConfigPathJSON()
	if err == nil {
		if _, err := os.Stat(jsonPath); err == nil {
			return jsonPath, nil
		}
	}
	return tomlPath, nil
}

// loadFileConfig reads path without environment overrides, so a set never
// persists a value that came from the environment. A missing file yields
// the defaults.
func loadFileConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); err != nil {
		return cfg, nil
	}

	var err error
	if isJSONPath(path) {
		err = config.LoadJSON(cfg, path)
	} else {
		err = config.LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	cfg.SetDefaults()
	return cfg, nil
}

func saveFileConfig(cfg *config.Config, path string) error {
	if isJSONPath(path) {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}

func isJSONPath(path string) bool {
	return strings.HasSuffix(path, ".json")
}

func configShowAction(_ context.Context, cmd *cli.Command) error {
	cfg := config.Global()
	w := cmd.Root().Writer
	if cmd.Bool("json") {
		shown := cfg.Clone()
		shown.Server.APIKey = maskAPIKey(shown.Server.APIKey)
		return NewJSONResponse("config show", shown).Write(w)
	}

	fmt.Fprintln(w, RenderConditional(TitleStyle, "Configuration"))
	for _, key := range config.GetAllKeys() {
		value, err := cfg.Get(key)
		if err != nil {
			return err
		}
		label := RenderConditional(LabelStyle.Width(28), fmt.Sprintf("%-28s", key))
		fmt.Fprintf(w, "%s%s\n", label, formatConfigValue(maskIfSecret(key, value)))
	}
	return nil
}

func configGetAction(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return NewUsageError("config get", fmt.Sprintf("expected 1 argument, got %d", cmd.Args().Len()), "linediff config get KEY")
	}
	key := cmd.Args().First()

	value, err := config.Global().Get(key)
	if err != nil {
		return NewUsageError("config get", err.Error(), "linediff config keys")
	}

	value = maskIfSecret(key, value)

	w := cmd.Root().Writer
	if cmd.Bool("json") {
		return NewJSONResponse("config get", map[string]interface{}{key: value}).Write(w)
	}
	fmt.Fprintln(w, formatConfigValue(value))
	return nil
}

func configSetAction(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return NewUsageError("config set", fmt.Sprintf("expected 2 arguments, got %d", cmd.Args().Len()), "linediff config set KEY VALUE")
	}
	key, value := cmd.Args().Get(0), cmd.Args().Get(1)

	path, err := configFilePath(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadFileConfig(path)
	if err != nil {
		return err
	}

	if err := cfg.Set(key, value); err != nil {
		return NewUsageError("config set", err.Error(), "linediff config keys")
	}
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	if err := saveFileConfig(cfg, path); err != nil {
		return err
	}

	shown := formatConfigValue(maskIfSecret(key, value))
	fmt.Fprintf(cmd.Root().Writer, "%s %s = %s\n", RenderConditional(SuccessStyle, "Set"), key, shown)
	return nil
}

func configResetAction(_ context.Context, cmd *cli.Command) error {
	path, err := configFilePath(cmd)
	if err != nil {
		return err
	}
	if err := saveFileConfig(config.Default(), path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "%s %s\n", RenderConditional(SuccessStyle, "Reset"), path)
	return nil
}

func configPathAction(_ context.Context, cmd *cli.Command) error {
	path, err := configFilePath(cmd)
	if err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	data := ConfigPathData{Path: path, Exists: statErr == nil}

	w := cmd.Root().Writer
	if cmd.Bool("json") {
		return NewJSONResponse("config path", data).Write(w)
	}
	fmt.Fprintln(w, data.Path)
	if !data.Exists {
		fmt.Fprintln(cmd.Root().ErrWriter, RenderConditional(DimStyle, "(file does not exist, defaults in use)"))
	}
	return nil
}

func configKeysAction(_ context.Context, cmd *cli.Command) error {
	for _, key := range config.GetAllKeys() {
		fmt.Fprintln(cmd.Root().Writer, key)
	}
	return nil
}

func formatConfigValue(value interface{}) string {
	switch v := value.(type) {
	case []string:
		return strings.Join(v, ",")
	case string:
		if v == "" {
			return `""`
		}
		return v
	default:
		return fmt.Sprint(v)
	}
}

// secretKeys are never printed in clear.
var secretKeys = map[string]bool{
	"server.api_key": true,
}

func maskIfSecret(key string, value interface{}) interface{} {
	if s, ok := value.(string); ok && secretKeys[key] {
		return maskAPIKey(s)
	}
	return value
}

// maskAPIKey replaces a key with a short fingerprint, so two keys can be
// told apart without revealing either.
func maskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("sha256:%x...", hash[:4])
}
