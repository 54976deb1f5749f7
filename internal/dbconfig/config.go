// Package dbconfig loads the small set of tunables the storage engine
// needs: page size, the compaction threshold, the minimum tracked
// free-list block, and the default log level. Modeled after conure-db's
// yaml.v3-backed node configuration.
package dbconfig

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the tunables read from an optional YAML file passed to
// Open. Zero-value fields are filled in from Default() by Load.
type Config struct {
	PageSize            uint32  `yaml:"page_size"`
	CompactionThreshold float64 `yaml:"compaction_threshold"`
	MinFreeBlock        uint32  `yaml:"min_free_block"`
	LogLevel            string  `yaml:"log_level"`
}

// Default returns the concrete sizing from the spec: a 4096-byte page,
// a 25% compaction threshold, and an 8-byte minimum tracked free block.
func Default() Config {
	return Config{
		PageSize:            4096,
		CompactionThreshold: 0.25,
		MinFreeBlock:        8,
		LogLevel:            "info",
	}
}

// Load reads a YAML config file at path, if non-empty, and overlays it on
// top of Default(). An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "dbconfig: read %s", path)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "dbconfig: parse %s", path)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.PageSize < 512 {
		return errors.Errorf("dbconfig: page_size %d is below the 512-byte minimum", c.PageSize)
	}
	if c.PageSize%4 != 0 {
		return errors.Errorf("dbconfig: page_size %d is not a multiple of 4", c.PageSize)
	}
	if c.CompactionThreshold <= 0 || c.CompactionThreshold > 1 {
		return errors.Errorf("dbconfig: compaction_threshold %v must be in (0, 1]", c.CompactionThreshold)
	}
	if c.MinFreeBlock < 8 {
		return errors.Errorf("dbconfig: min_free_block %d is below the 8-byte minimum", c.MinFreeBlock)
	}
	return nil
}
