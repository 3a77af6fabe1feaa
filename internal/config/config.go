// Package config loads larder's config.yaml with Viper.
//
// The file lives in the configuration directory resolved by package paths.
// It is created with defaults on first run; a missing file is not an error.
// Every key can be overridden from the environment with the LARDER_ prefix,
// dots replaced by underscores (LARDER_BACKING_DRIVER, LARDER_LOG_LEVEL).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/larder/pkg/types"
)

const (
	fileName = "config"
	fileType = "yaml"
	// FileExt is the on-disk name of the configuration file.
	FileExt = "config.yaml"

	envPrefix = "LARDER"

	// LockDateLayout is the accepted lock_date format.
	LockDateLayout = "2006-01-02"
)

// Backing selects and locates the repository document.
type Backing struct {
	Driver   string `mapstructure:"driver" yaml:"driver" validate:"oneof=file sqlite s3"`
	Path     string `mapstructure:"path" yaml:"path"`
	Bucket   string `mapstructure:"bucket" yaml:"bucket" validate:"required_if=Driver s3"`
	Key      string `mapstructure:"key" yaml:"key"`
	Region   string `mapstructure:"region" yaml:"region"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" validate:"omitempty,url"`
}

// Log configures the logrus logger.
type Log struct {
	Level     string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Mode      string `mapstructure:"mode" yaml:"mode" validate:"oneof=console file"`
	Directory string `mapstructure:"directory" yaml:"directory"`
	Format    string `mapstructure:"format" yaml:"format" validate:"oneof=json text"`
}

// Audit configures the change journal. An empty path disables it.
type Audit struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// Metrics configures the Prometheus textfile export. An empty path
// disables it.
type Metrics struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// Config is the decoded config.yaml.
type Config struct {
	Backing  Backing `mapstructure:"backing" yaml:"backing"`
	Log      Log     `mapstructure:"log" yaml:"log"`
	Audit    Audit   `mapstructure:"audit" yaml:"audit"`
	Metrics  Metrics `mapstructure:"metrics" yaml:"metrics"`
	LockDate string  `mapstructure:"lock_date" yaml:"lock_date" validate:"omitempty,datetime=2006-01-02"`
}

// Default returns the configuration used when config.yaml sets nothing.
func Default() Config {
	return Config{
		Backing: Backing{Driver: "file"},
		Log:     Log{Level: "info", Mode: "console", Format: "text"},
	}
}

// ParsedLockDate returns lock_date as a UTC date, or the zero time when
// unset.
func (c Config) ParsedLockDate() (time.Time, error) {
	if c.LockDate == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(LockDateLayout, c.LockDate, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: lock_date: %v", types.ErrConfiguration, err)
	}
	return t, nil
}

// Load reads config.yaml from configDir, creating the directory and a
// default file on first run, and applies LARDER_ environment overrides.
func Load(configDir string) (Config, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultFile(configDir); err != nil {
		return Config{}, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetConfigName(fileName)
	v.SetConfigType(fileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("%w: read config: %v", types.ErrConfiguration, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: decode config: %v", types.ErrConfiguration, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value constraints on cfg.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var fields validator.ValidationErrors
		if !errors.As(err, &fields) {
			return fmt.Errorf("%w: %v", types.ErrConfiguration, err)
		}
		msgs := make([]string, 0, len(fields))
		for _, fe := range fields {
			msgs = append(msgs, fmt.Sprintf("%s: %s %s", fe.Namespace(), fe.Tag(), fe.Param()))
		}
		return fmt.Errorf("%w: %s", types.ErrConfiguration, strings.Join(msgs, "; "))
	}
	if _, err := cfg.ParsedLockDate(); err != nil {
		return err
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can override it during
// Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("backing.driver", d.Backing.Driver)
	v.SetDefault("backing.path", d.Backing.Path)
	v.SetDefault("backing.bucket", d.Backing.Bucket)
	v.SetDefault("backing.key", d.Backing.Key)
	v.SetDefault("backing.region", d.Backing.Region)
	v.SetDefault("backing.endpoint", d.Backing.Endpoint)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.mode", d.Log.Mode)
	v.SetDefault("log.directory", d.Log.Directory)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("audit.path", d.Audit.Path)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
	v.SetDefault("lock_date", d.LockDate)
}

const defaultHeader = `# larder configuration
# backing.driver: file, sqlite or s3. backing.path defaults to the data dir.
# Environment variables LARDER_<SECTION>_<KEY> override these values.
`

// ensureDefaultFile writes a default config.yaml when none exists.
func ensureDefaultFile(configDir string) error {
	path := filepath.Join(configDir, FileExt)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	body, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, append([]byte(defaultHeader), body...), 0o644)
}

// SaveLockDate writes lock_date into config.yaml in configDir, keeping the
// other keys. A zero date clears it.
func SaveLockDate(configDir string, date time.Time) error {
	if err := ensureDefaultFile(configDir); err != nil {
		return fmt.Errorf("ensure default config: %w", err)
	}
	v := viper.New()
	v.SetConfigFile(filepath.Join(configDir, FileExt))
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read config: %v", types.ErrConfiguration, err)
	}
	value := ""
	if !date.IsZero() {
		value = date.UTC().Format(LockDateLayout)
	}
	v.Set("lock_date", value)
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
