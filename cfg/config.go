// Package cfg carries the engine's sizing parameters as a typed, bindable
// configuration: a set of user-settable fields plus fields derived from
// them, bindable to command-line flags and loadable from a config file.
package cfg

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the sizing parameters of the filesystem. Zero-value Config
// is not usable; call Derive (or Load) to fill in the computed fields and
// validate the result.
type Config struct {
	BlockSize       int `mapstructure:"block-size"`
	DataBlocks      int `mapstructure:"data-blocks"`
	InodeTableSize  int `mapstructure:"inode-table-size"`
	MaxOpenFiles    int `mapstructure:"max-open-files"`
	InodeDirectRefs int `mapstructure:"inode-direct-refs"`
	MaxFileName     int `mapstructure:"max-file-name"`
	Delay           int `mapstructure:"delay"`

	// Derived, not user-settable directly.
	MaxDirEntries   int `mapstructure:"-"`
	MaxIndirectRefs int `mapstructure:"-"`
	MaxFileSize     int `mapstructure:"-"`

	dirEntrySize int
}

// dirEntrySizeOf is the on-block layout of one directory entry: a
// MaxFileName byte name buffer plus a 4-byte inumber.
func (c Config) dirEntrySizeOf() int {
	return c.MaxFileName + 4
}

// Default returns the engine's built-in defaults: BlockSize=1024,
// DataBlocks=1024, InodeTableSize=8, MaxOpenFiles=8, InodeDirectRefs=5,
// MaxFileName=40, Delay=0.
func Default() Config {
	c := Config{
		BlockSize:       1024,
		DataBlocks:      1024,
		InodeTableSize:  8,
		MaxOpenFiles:    8,
		InodeDirectRefs: 5,
		MaxFileName:     40,
		Delay:           0,
	}
	if err := c.derive(); err != nil {
		// Defaults are constants chosen to be valid; a failure here is a
		// programming error in this package, not a runtime condition.
		panic(err)
	}
	return c
}

// Derive fills in the derived fields and validates the configuration,
// returning a ready-to-use copy.
func (c Config) Derive() (Config, error) {
	if err := c.derive(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) derive() error {
	switch {
	case c.BlockSize <= 0:
		return fmt.Errorf("cfg: block-size must be positive")
	case c.DataBlocks <= 0:
		return fmt.Errorf("cfg: data-blocks must be positive")
	case c.InodeTableSize <= 0:
		return fmt.Errorf("cfg: inode-table-size must be positive")
	case c.MaxOpenFiles <= 0:
		return fmt.Errorf("cfg: max-open-files must be positive")
	case c.InodeDirectRefs <= 0:
		return fmt.Errorf("cfg: inode-direct-refs must be positive")
	case c.MaxFileName < 2:
		return fmt.Errorf("cfg: max-file-name must be at least 2")
	case c.Delay < 0:
		return fmt.Errorf("cfg: delay must not be negative")
	}

	c.dirEntrySize = c.dirEntrySizeOf()
	c.MaxDirEntries = c.BlockSize / c.dirEntrySize
	c.MaxIndirectRefs = c.BlockSize / 4 // sizeof(int32) block index
	c.MaxFileSize = c.BlockSize * (c.InodeDirectRefs + c.MaxIndirectRefs)

	if c.MaxDirEntries == 0 {
		return fmt.Errorf("cfg: block-size too small to hold a single directory entry")
	}
	if c.InodeDirectRefs+c.MaxIndirectRefs > c.DataBlocks {
		return fmt.Errorf("cfg: data-blocks too small for the configured fanout")
	}
	return nil
}

// DirEntrySize returns the on-block size of one directory entry.
func (c Config) DirEntrySize() int {
	if c.dirEntrySize == 0 {
		return c.dirEntrySizeOf()
	}
	return c.dirEntrySize
}

// BindFlags registers one flag per configurable parameter on flagSet and
// binds each into v.
func BindFlags(v *viper.Viper, flagSet *pflag.FlagSet) error {
	d := Default()

	flagSet.Int("block-size", d.BlockSize, "Size in bytes of a single data block.")
	flagSet.Int("data-blocks", d.DataBlocks, "Number of data blocks in the pool.")
	flagSet.Int("inode-table-size", d.InodeTableSize, "Number of inode slots (slot 0 is the root directory).")
	flagSet.Int("max-open-files", d.MaxOpenFiles, "Number of open-file-table entries.")
	flagSet.Int("inode-direct-refs", d.InodeDirectRefs, "Number of direct block references per inode.")
	flagSet.Int("max-file-name", d.MaxFileName, "Maximum bytes (including the terminator) in a file name.")
	flagSet.Int("delay", d.Delay, "Artificial latency steps per simulated storage access.")

	for _, name := range []string{
		"block-size", "data-blocks", "inode-table-size", "max-open-files",
		"inode-direct-refs", "max-file-name", "delay",
	} {
		if err := v.BindPFlag(name, flagSet.Lookup(name)); err != nil {
			return fmt.Errorf("cfg: bind %s: %w", name, err)
		}
	}
	return nil
}

// Load reads an optional config file (if path is non-empty) through v and
// decodes the result into a derived, validated Config. Values bound via
// BindFlags take precedence over file contents unless the flag was left at
// its default and the file sets it, which is viper's usual precedence.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("cfg: read config file: %w", err)
		}
	}

	out := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         nil,
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return Config{}, fmt.Errorf("cfg: build decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return Config{}, fmt.Errorf("cfg: decode settings: %w", err)
	}
	return out.Derive()
}
