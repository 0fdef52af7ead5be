package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	maxWalkDepth = 25
)

// Config represents the dbsync configuration from dbsync.yaml.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database" json:"database"`
	Version   VersionConfig   `mapstructure:"version" json:"version"`
	Changelog ChangelogConfig `mapstructure:"changelog" json:"changelog"`
	VCS       VCSConfig       `mapstructure:"vcs" json:"vcs"`
	Sync      SyncConfig      `mapstructure:"sync" json:"sync"`
	Log       LogConfig       `mapstructure:"log" json:"log"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	URL      string `mapstructure:"url" json:"url"`
	Driver   string `mapstructure:"driver" json:"driver"`
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	Name     string `mapstructure:"name" json:"name"`
	User     string `mapstructure:"user" json:"user"`
	Password string `mapstructure:"password" json:"password"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode"`
}

// VersionConfig locates the version row in the target database.
type VersionConfig struct {
	Table       string `mapstructure:"table" json:"table"`
	KeyColumn   string `mapstructure:"key_column" json:"key_column"`
	ValueColumn string `mapstructure:"value_column" json:"value_column"`
	Key         string `mapstructure:"key" json:"key"`
	GetQuery    string `mapstructure:"get_query" json:"get_query,omitempty"`
	SetQuery    string `mapstructure:"set_query" json:"set_query,omitempty"`
}

// ChangelogConfig describes the tracked changelog file.
type ChangelogConfig struct {
	Path          string `mapstructure:"path" json:"path"`
	HeaderLines   int    `mapstructure:"header_lines" json:"header_lines"`
	BlankRevision int64  `mapstructure:"blank_revision" json:"blank_revision"`
}

// VCSConfig selects the version control backend.
type VCSConfig struct {
	Kind   string `mapstructure:"kind" json:"kind"`
	Binary string `mapstructure:"binary" json:"binary,omitempty"`
}

// SyncConfig holds sync settings.
type SyncConfig struct {
	DryRun   bool          `mapstructure:"dry_run" json:"dry_run"`
	MarkOnly bool          `mapstructure:"mark_only" json:"mark_only"`
	Skip     bool          `mapstructure:"skip" json:"skip"`
	Timeout  time.Duration `mapstructure:"timeout" json:"timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Format string `mapstructure:"format" json:"format"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env > config file > defaults.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	// 1. Set defaults first (lowest precedence)
	setDefaults(v)

	// 2. Set up environment variable binding
	v.SetEnvPrefix("DBSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 3. Find and load config file
	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	// 4. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.url", "")
	v.SetDefault("database.driver", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "prefer")

	// Version row defaults
	v.SetDefault("version.table", "dbsync_version")
	v.SetDefault("version.key_column", "name")
	v.SetDefault("version.value_column", "value")
	v.SetDefault("version.key", "schema_version")
	v.SetDefault("version.get_query", "")
	v.SetDefault("version.set_query", "")

	// Changelog defaults
	v.SetDefault("changelog.path", "")
	v.SetDefault("changelog.header_lines", 2)
	v.SetDefault("changelog.blank_revision", 0)

	// VCS defaults
	v.SetDefault("vcs.kind", "svn")
	v.SetDefault("vcs.binary", "")

	// Sync defaults
	v.SetDefault("sync.dry_run", false)
	v.SetDefault("sync.mark_only", false)
	v.SetDefault("sync.skip", false)
	v.SetDefault("sync.timeout", 0)

	// Log defaults
	v.SetDefault("log.format", "text")
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for dbsync.yaml or dbsync.yml,
// stopping at a .git or .svn directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	// Auto-discovery: walk up to the working copy root or maxWalkDepth
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		// Try dbsync.yaml then dbsync.yml
		for _, name := range []string{"dbsync.yaml", "dbsync.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		// Check for repo boundary (.git file or directory, .svn directory)
		if isRepoRoot(dir) {
			break
		}

		// Move up
		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached filesystem root
		}
		dir = parent
	}

	return "", nil // No config found, use defaults
}

func isRepoRoot(dir string) bool {
	for _, marker := range []string{".git", ".svn"} {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// Redacted returns a copy of the config safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Database.Password != "" {
		out.Database.Password = "********"
	}
	if out.ResolvedDriver() == DriverMySQL && !strings.HasPrefix(out.Database.URL, "mysql://") {
		out.Database.URL = redactMySQLDSN(out.Database.URL)
	} else {
		out.Database.URL = redactURL(out.Database.URL)
	}
	return &out
}
