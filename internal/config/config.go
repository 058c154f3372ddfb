package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ColumnsConfig says which worksheet column holds each event field.
type ColumnsConfig struct {
	Section    string `yaml:"section" json:"section"`
	Date       string `yaml:"date" json:"date"`
	Format     string `yaml:"format" json:"format"`
	Delivery   string `yaml:"delivery" json:"delivery"`
	Instructor string `yaml:"instructor" json:"instructor"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Input is the workbook path or an http(s) URL.
	Input string `yaml:"input" json:"input"`

	// OutputDir receives one <category>.ics file per category.
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// StagingFile is the intermediate CSV table.
	StagingFile string `yaml:"staging_file" json:"staging_file"`
	KeepStaging bool   `yaml:"keep_staging" json:"keep_staging"`

	// Overwrite allows replacing existing output and staging files.
	Overwrite bool `yaml:"overwrite" json:"overwrite"`

	// Timezone is the IANA zone used as TZID and X-WR-TIMEZONE (e.g. "America/Vancouver").
	Timezone string `yaml:"timezone" json:"timezone"`

	Columns         ColumnsConfig `yaml:"columns" json:"columns"`
	CategoryCell    string        `yaml:"category_cell" json:"category_cell"`
	DefaultCategory string        `yaml:"default_category" json:"default_category"`
	FirstDataRow    int           `yaml:"first_data_row" json:"first_data_row"`

	// Color, when set, is attached to every event as X-APPLE-CALENDAR-COLOR.
	Color string `yaml:"color,omitempty" json:"color,omitempty"`

	ProductID string `yaml:"product_id" json:"product_id"`
	LogLevel  string `yaml:"log_level" json:"log_level"`

	// CacheDir stores downloaded workbooks when Input is a URL.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Listen is the HTTP listen address for `serve`.
	Listen string `yaml:"listen" json:"listen"`

	// WatchCron is a cron-style schedule (e.g. "*/5 * * * *" or "@every 1m")
	// used by `watch` to check the input for changes.
	WatchCron string `yaml:"watch" json:"watch"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultInput        = "View_My_Courses.xlsx"
	defaultStaging      = "temp_calendar.csv"
	defaultTimezone     = "America/Vancouver"
	defaultCategoryCell = "A1"
	defaultCategory     = "Courses"
	defaultFirstDataRow = 4
	defaultProductID    = "-//courseics//Course Schedule//EN"
	defaultLogLevel     = "info"
	defaultCacheDir     = "./var/xlsx-cache"
	defaultListen       = "127.0.0.1:8080"
	defaultWatchCron    = "@every 1m"
)

func defaultColumns() ColumnsConfig {
	return ColumnsConfig{
		Section:    "G",
		Date:       "K",
		Format:     "I",
		Delivery:   "J",
		Instructor: "L",
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Input:           defaultInput,
		OutputDir:       ".",
		StagingFile:     defaultStaging,
		Timezone:        defaultTimezone,
		Columns:         defaultColumns(),
		CategoryCell:    defaultCategoryCell,
		DefaultCategory: defaultCategory,
		FirstDataRow:    defaultFirstDataRow,
		ProductID:       defaultProductID,
		LogLevel:        defaultLogLevel,
		CacheDir:        defaultCacheDir,
		Listen:          defaultListen,
		WatchCron:       defaultWatchCron,
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	setDefault(&c.Input, d.Input)
	setDefault(&c.OutputDir, d.OutputDir)
	setDefault(&c.StagingFile, d.StagingFile)
	setDefault(&c.Timezone, d.Timezone)
	setDefault(&c.Columns.Section, d.Columns.Section)
	setDefault(&c.Columns.Date, d.Columns.Date)
	setDefault(&c.CategoryCell, d.CategoryCell)
	setDefault(&c.DefaultCategory, d.DefaultCategory)
	setDefault(&c.ProductID, d.ProductID)
	setDefault(&c.LogLevel, d.LogLevel)
	setDefault(&c.CacheDir, d.CacheDir)
	setDefault(&c.Listen, d.Listen)
	setDefault(&c.WatchCron, d.WatchCron)

	// Column letters are case-insensitive in the sheet; keep them upper.
	c.Columns.Section = strings.ToUpper(c.Columns.Section)
	c.Columns.Date = strings.ToUpper(c.Columns.Date)
	c.Columns.Format = strings.ToUpper(c.Columns.Format)
	c.Columns.Delivery = strings.ToUpper(c.Columns.Delivery)
	c.Columns.Instructor = strings.ToUpper(c.Columns.Instructor)
	c.CategoryCell = strings.ToUpper(c.CategoryCell)

	if c.FirstDataRow <= 0 {
		c.FirstDataRow = d.FirstDataRow
	}
}

func setDefault(field *string, def string) {
	if strings.TrimSpace(*field) == "" {
		*field = def
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".courseics-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// envPrefix namespaces environment overrides, e.g. COURSEICS_TIMEZONE.
const envPrefix = "COURSEICS_"

// ApplyEnv loads dotenv files (missing files are ignored) and then applies
// COURSEICS_* variables on top of c. Variables already set in the process
// environment win over dotenv values.
func (c *Config) ApplyEnv(dotenvFiles ...string) error {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	strs := map[string]*string{
		"INPUT":        &c.Input,
		"OUTPUT_DIR":   &c.OutputDir,
		"STAGING_FILE": &c.StagingFile,
		"TIMEZONE":     &c.Timezone,
		"COLOR":        &c.Color,
		"LOG_LEVEL":    &c.LogLevel,
		"LISTEN":       &c.Listen,
		"WATCH":        &c.WatchCron,
	}
	for key, field := range strs {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*field = v
		}
	}

	bools := map[string]*bool{
		"OVERWRITE":    &c.Overwrite,
		"KEEP_STAGING": &c.KeepStaging,
	}
	for key, field := range bools {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return errors.New(envPrefix + key + ": " + err.Error())
			}
			*field = b
		}
	}

	if v, ok := os.LookupEnv(envPrefix + "FIRST_DATA_ROW"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New(envPrefix + "FIRST_DATA_ROW: " + err.Error())
		}
		c.FirstDataRow = n
	}

	c.Normalize()
	return nil
}
