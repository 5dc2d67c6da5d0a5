package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/metakg/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get or set repository configuration values",
	Long: `Get or set repository configuration values.

Usage:
  mkg config                        # Show all config
  mkg config max-hops               # Get specific value
  mkg config max-hops 8             # Set value
  mkg config data-dirs kegg,sbml    # Comma-separated list

Keys:
  db-path     Database file, relative to the repository root
  data-dirs   Input directories scanned by build
  max-hops    Default path search limit

Global settings (log_level, listen_addr, simulation defaults) live in
` + "`$XDG_CONFIG_HOME/metakg/config.yml`" + `.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	root, cfg := mustFindRepository()

	if len(args) == 0 {
		if humanOutput {
			outputHuman("db-path:   %s\n", cfg.ResolveDBPath(root))
			outputHuman("data-dirs: %s\n", strings.Join(cfg.DataDirs, ","))
			outputHuman("max-hops:  %d\n", cfg.Hops())
			outputHuman("global:    %s\n", config.GlobalConfigPath())
			return nil
		}
		return outputJSON(cfg)
	}

	key := normalizeKey(args[0])
	if len(args) == 1 {
		v, ok := configValue(cfg, root, key)
		if !ok {
			exitWithError(ExitError, "unknown config key: %s", args[0])
		}
		if humanOutput {
			fmt.Println(v)
			return nil
		}
		return outputJSON(map[string]string{strings.ReplaceAll(key, "-", "_"): v})
	}

	value := args[1]
	switch key {
	case "db-path":
		cfg.DBPath = value
	case "data-dirs":
		cfg.DataDirs = splitList(value)
	case "max-hops":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			exitWithError(ExitConfigError, "max-hops must be a positive integer, got %q", value)
		}
		cfg.MaxHops = n
	default:
		exitWithError(ExitError, "unknown config key: %s", args[0])
	}
	if err := cfg.Save(root); err != nil {
		exitWithError(ExitError, "saving config: %v", err)
	}

	if humanOutput {
		outputHuman("Set %s = %s\n", key, value)
		return nil
	}
	return outputJSON(UpdateResponse{Status: "updated", Key: key, Value: value})
}

// UpdateResponse is the response for config set commands.
type UpdateResponse struct {
	Status string `json:"status"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

func configValue(cfg *config.Config, root, key string) (string, bool) {
	switch key {
	case "db-path":
		return cfg.ResolveDBPath(root), true
	case "data-dirs":
		return strings.Join(cfg.DataDirs, ","), true
	case "max-hops":
		return strconv.Itoa(cfg.Hops()), true
	}
	return "", false
}

// normalizeKey accepts db_path, dbPath or db-path.
func normalizeKey(key string) string {
	key = strings.ReplaceAll(strings.ToLower(key), "_", "-")
	switch key {
	case "dbpath":
		return "db-path"
	case "datadirs":
		return "data-dirs"
	case "maxhops":
		return "max-hops"
	}
	return key
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
