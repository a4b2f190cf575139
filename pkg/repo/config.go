package repo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// currentFormatVersion is the repository layout version this build reads and
// writes.
const currentFormatVersion = 1

// Config stores repository-local settings, persisted as .cask/config.toml.
type Config struct {
	Core CoreConfig `toml:"core"`
}

// CoreConfig carries the settings every repository has: the on-disk layout
// version and the digest algorithm that defines object identity. The digest
// is fixed at init time; rewriting it would orphan every stored object.
type CoreConfig struct {
	FormatVersion int    `toml:"format_version"`
	Digest        string `toml:"digest"`
}

func configPath(caskDir string) string {
	return filepath.Join(caskDir, "config.toml")
}

// readConfig reads .cask/config.toml. A missing file reads as the defaults,
// so repositories created before the config file existed still open.
func readConfig(caskDir string) (*Config, error) {
	cfg := &Config{
		Core: CoreConfig{FormatVersion: currentFormatVersion},
	}
	data, err := os.ReadFile(configPath(caskDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if cfg.Core.FormatVersion > currentFormatVersion {
		return nil, fmt.Errorf(
			"read config: repository format version %d is newer than supported version %d",
			cfg.Core.FormatVersion, currentFormatVersion,
		)
	}
	return cfg, nil
}

// writeConfig atomically writes .cask/config.toml.
func writeConfig(caskDir string, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}

	tmp, err := os.CreateTemp(caskDir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, configPath(caskDir)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}
