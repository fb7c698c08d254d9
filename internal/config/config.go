package config

import (
	"encoding/json"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/telepath-dev/telepath/internal/errors"
	"github.com/telepath-dev/telepath/internal/logging"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "telepath.json"

	// YAMLConfigFileName is the name of the YAML configuration file. It is
	// used when no JSON file exists.
	YAMLConfigFileName = "telepath.yaml"

	// DefaultOutput is the default generated file, relative to the project root.
	DefaultOutput = "internal/routes/telepath_gen.go"

	// DefaultManifest is the default manifest file.
	DefaultManifest = "telepath_routes.tsv"

	// DefaultS3Key is the default object key for published manifests.
	DefaultS3Key = "telepath/routes.tsv"

	// DefaultDebounce is the default delay between a change and regeneration.
	DefaultDebounce = "200ms"
)

// Config represents the complete telepath configuration.
type Config struct {
	// Module overrides the module path read from go.mod.
	Module string `json:"module,omitempty" yaml:"module,omitempty"`

	// Scan selects the directories searched for directives.
	Scan ScanConfig `json:"scan" yaml:"scan"`

	// Gen configures the generated table source.
	Gen GenConfig `json:"gen" yaml:"gen"`

	// Manifest configures the route manifest.
	Manifest ManifestConfig `json:"manifest" yaml:"manifest"`

	// Watch configures `telepath gen --watch`.
	Watch WatchConfig `json:"watch" yaml:"watch"`

	// Log configures CLI logging.
	Log logging.Config `json:"log" yaml:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string

	// dir is the project root when no file was loaded.
	dir string
}

// ScanConfig contains scanner settings.
type ScanConfig struct {
	// Dirs are scanned recursively, relative to the project root.
	Dirs []string `json:"dirs,omitempty" yaml:"dirs,omitempty"`

	// Exclude holds path.Match patterns for files and directories to skip.
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// GenConfig contains generator settings.
type GenConfig struct {
	// Output is the generated file path.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// Package is the package name of the generated file. Defaults to the
	// name of the output directory.
	Package string `json:"package,omitempty" yaml:"package,omitempty"`
}

// ManifestConfig contains manifest settings.
type ManifestConfig struct {
	// Enabled writes the manifest on every generation.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Path is the local manifest file.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// S3 publishes the manifest to a bucket as well.
	S3 *S3Config `json:"s3,omitempty" yaml:"s3,omitempty"`
}

// S3Config contains the manifest bucket location.
type S3Config struct {
	Bucket   string `json:"bucket" yaml:"bucket"`
	Key      string `json:"key,omitempty" yaml:"key,omitempty"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// WatchConfig contains watch mode settings.
type WatchConfig struct {
	// Debounce is the quiet period before regenerating (e.g., "200ms").
	Debounce string `json:"debounce,omitempty" yaml:"debounce,omitempty"`

	// Ignore contains patterns to ignore during watch.
	Ignore []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads configuration from the specified directory. It looks for
// telepath.json, then telepath.yaml.
func Load(dir string) (*Config, error) {
	for _, name := range []string{ConfigFileName, YAMLConfigFileName, "telepath.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("T303").
		WithDetail("No " + ConfigFileName + " or " + YAMLConfigFileName + " found in " + dir)
}

// LoadOrDefault loads the configuration in dir, falling back to defaults
// rooted at dir when there is none.
func LoadOrDefault(dir string) (*Config, error) {
	if !Exists(dir) {
		c := New()
		c.dir = dir
		return c, nil
	}
	return Load(dir)
}

// LoadFile reads configuration from the specified file path. Files ending
// in .yaml or .yml are parsed as YAML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("T303").
				WithDetail("No configuration found at " + path)
		}
		return nil, errors.New("T304").Wrap(err)
	}

	cfg := &Config{}
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("T304").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path, as YAML when the
// extension asks for it.
func (c *Config) SaveTo(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("T304").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("T304").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the project root.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return c.dir
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if len(c.Scan.Dirs) == 0 {
		c.Scan.Dirs = []string{"."}
	}

	if c.Gen.Output == "" {
		c.Gen.Output = DefaultOutput
	}
	if c.Gen.Package == "" {
		c.Gen.Package = filepath.Base(filepath.Dir(filepath.Clean(c.Gen.Output)))
	}

	if c.Manifest.Path == "" {
		c.Manifest.Path = DefaultManifest
	}
	if c.Manifest.S3 != nil && c.Manifest.S3.Key == "" {
		c.Manifest.S3.Key = DefaultS3Key
	}

	if c.Watch.Debounce == "" {
		c.Watch.Debounce = DefaultDebounce
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !strings.HasSuffix(c.Gen.Output, ".go") {
		return errors.New("T304").
			WithDetail("gen.output must name a .go file, got " + c.Gen.Output)
	}
	if !token.IsIdentifier(c.Gen.Package) {
		return errors.New("T304").
			WithDetail("gen.package is not a valid Go package name: " + c.Gen.Package).
			WithSuggestion("Set gen.package explicitly")
	}
	if s3 := c.Manifest.S3; s3 != nil && s3.Bucket == "" {
		return errors.New("T304").
			WithDetail("manifest.s3.bucket is required when manifest.s3 is set")
	}
	if d, err := time.ParseDuration(c.Watch.Debounce); err != nil || d < 0 {
		return errors.New("T304").
			WithDetail("watch.debounce must be a duration such as 200ms, got " + c.Watch.Debounce)
	}
	if _, err := logging.New(logging.Config{Level: c.Log.Level, Format: c.Log.Format}); err != nil {
		return errors.New("T304").Wrap(err)
	}
	return nil
}

// ScanPaths returns the absolute directories to scan.
func (c *Config) ScanPaths() []string {
	out := make([]string, len(c.Scan.Dirs))
	for i, d := range c.Scan.Dirs {
		out[i] = c.resolve(d)
	}
	return out
}

// OutputPath returns the absolute path of the generated file.
func (c *Config) OutputPath() string {
	return c.resolve(c.Gen.Output)
}

// ManifestPath returns the absolute path of the manifest file.
func (c *Config) ManifestPath() string {
	return c.resolve(c.Manifest.Path)
}

// DebounceDuration returns the parsed watch debounce.
func (c *Config) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		d, _ = time.ParseDuration(DefaultDebounce)
	}
	return d
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range []string{ConfigFileName, YAMLConfigFileName, "telepath.yml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the project root: the
// nearest directory holding a telepath config file or, failing that, a
// go.mod.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	modRoot := ""
	for {
		if Exists(dir) {
			return dir, nil
		}
		if modRoot == "" {
			if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
				modRoot = dir
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			if modRoot != "" {
				return modRoot, nil
			}
			return "", errors.New("T303").
				WithDetail("No telepath config or go.mod found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration for the project containing the
// current working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return LoadOrDefault(root)
}
