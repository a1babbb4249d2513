package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configFileHeader = `# ForgeFS Configuration File
#
# Generated by forgefs -init-config. Values removed from this file fall
# back to built-in defaults. Every key can also be set through the
# environment as FORGEFS_<SECTION>_<KEY>.

`

// sectionComments holds the comment printed above each top-level section
// in generated configuration files.
var sectionComments = map[string]string{
	"logging": "Log level (DEBUG, INFO, WARN, ERROR), format, and destination.",
	"fs":      "Handle factory limits. Zero picks a machine-appropriate value.",
	"scan":    "Scan root and ignore globs, e.g. \"**/*.o\" or \"target/**\".",
	"digest":  "Per-file digest computed during scans: none or blake3.\nA hex-encoded 32-byte digest.blake3.key selects keyed hashing.",
	"watch":   "Watch mode: debounce window and rebuild rate limiting.",
	"metrics": "Prometheus metrics endpoint.",
}

// InitConfig writes the default configuration file to the default location.
//
// Parameters:
//   - force: Overwrite an existing file
//
// Returns:
//   - string: Path of the written file
//   - error: If the file exists (without force) or writing fails
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the default configuration file to an explicit
// path, creating parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use force to overwrite)", path)
		}
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg as YAML with a file header and a
// comment block above each section.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var root yaml.Node
	if err := root.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	// Attach section comments to the top-level keys
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i]
		if comment, ok := sectionComments[key.Value]; ok {
			key.HeadComment = comment
		}
	}

	// Durations encode as nanosecond integers; render them readably
	if watch := mappingValue(&root, "watch"); watch != nil {
		if d := mappingValue(watch, "debounce"); d != nil {
			d.SetString(cfg.Watch.Debounce.String())
		}
	}

	out, err := yaml.Marshal(&root)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	return configFileHeader + string(out), nil
}

// mappingValue returns the value node for key in a YAML mapping node, or
// nil if absent.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
