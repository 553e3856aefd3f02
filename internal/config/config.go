// Package config provides configuration loading and structs for lotdocs.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Download modes for lot attachments.
const (
	DownloadArchive  = "archive"
	DownloadItemized = "itemized"
)

// Link modes for the aggregate query directory.
const (
	LinkCopy    = "copy"
	LinkSymlink = "symlink"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Logging string        `yaml:"logging"`
	Workdir string        `yaml:"workdir"`
	Portal  PortalConfig  `yaml:"portal"`
	Tools   ToolsConfig   `yaml:"tools"`
	OCR     OCRConfig     `yaml:"ocr"`
	Convert ConvertConfig `yaml:"convert"`
	Stages  StagesConfig  `yaml:"stages"`
	Output  OutputConfig  `yaml:"output"`
	Storage StorageConfig `yaml:"storage"`
	Search  SearchConfig  `yaml:"search"`
	Server  ServerConfig  `yaml:"server"`
	Watch   WatchConfig   `yaml:"watch"`
}

// PortalConfig holds tender portal access settings.
type PortalConfig struct {
	URLPrefix    string          `yaml:"url_prefix"`
	DownloadMode string          `yaml:"download_mode"`
	Timeout      time.Duration   `yaml:"timeout"`
	UserAgent    string          `yaml:"user_agent"`
	Selectors    SelectorsConfig `yaml:"selectors"`
}

// SelectorsConfig holds CSS selectors for the portal's pages.
type SelectorsConfig struct {
	LotList     string `yaml:"lot_list"`
	LotName     string `yaml:"lot_name"`
	ArchiveLink string `yaml:"archive_link"`
	FileLinks   string `yaml:"file_links"`
}

// ToolsConfig holds external program names or absolute paths.
type ToolsConfig struct {
	Tesseract   string `yaml:"tesseract"`
	Pdftoppm    string `yaml:"pdftoppm"`
	Soffice     string `yaml:"soffice"`
	TessdataDir string `yaml:"tessdata_dir"`
}

// OCRConfig holds recognition settings for scanned PDFs.
type OCRConfig struct {
	Language string `yaml:"language"`
	DPI      int    `yaml:"dpi"`
	MaxPages int    `yaml:"max_pages"`
}

// ConvertConfig holds conversion pipeline settings.
type ConvertConfig struct {
	Extensions []string `yaml:"extensions"`
	// StopDirOnSkip stops processing a directory's remaining files after the first ignored or failed file.
	StopDirOnSkip bool `yaml:"stop_dir_on_skip"`
}

// StagesConfig forces stages to run even when their output directory is populated.
type StagesConfig struct {
	ForceDownload bool `yaml:"force_download"`
	ForceExpand   bool `yaml:"force_expand"`
	ForceConvert  bool `yaml:"force_convert"`
}

// OutputConfig holds aggregate directory settings.
type OutputConfig struct {
	LinkMode   string `yaml:"link_mode"`
	NameMaxLen int    `yaml:"name_max_len"`
}

// StorageConfig holds paths for the run ledger.
type StorageConfig struct {
	LedgerPath string `yaml:"ledger_path"`
}

// SearchConfig holds keyword index settings.
type SearchConfig struct {
	Enabled      *bool   `yaml:"enabled"`
	IndexPath    string  `yaml:"index_path"`
	DefaultLimit int     `yaml:"default_limit"`
	LotNameBoost float64 `yaml:"lot_name_boost"`
	PhraseBoost  float64 `yaml:"phrase_boost"`
	Fuzzy        bool    `yaml:"fuzzy"`
	Fuzziness    int     `yaml:"fuzziness"`
}

// ServerConfig holds the HTTP API listen address.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WatchConfig holds settings for following the text tree.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// EnabledOrDefault returns whether indexing is enabled; defaults to true when unset.
func (s *SearchConfig) EnabledOrDefault() bool {
	if s.Enabled != nil {
		return *s.Enabled
	}
	return true
}

// Load reads and parses the config file at path, applies defaults, and expands paths.
// Returns an error if the file cannot be read or parsed, or if a value is invalid.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	cfg.expandPaths(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with defaults applied and paths expanded against the home directory.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	cfg.expandPaths(".")
	return &cfg
}

func (c *Config) expandPaths(configDir string) {
	c.Workdir = expandPath(c.Workdir, configDir)
	if c.Storage.LedgerPath == "" {
		c.Storage.LedgerPath = filepath.Join(c.Workdir, "ledger.db")
	} else {
		c.Storage.LedgerPath = expandPath(c.Storage.LedgerPath, configDir)
	}
	if c.Search.IndexPath == "" {
		c.Search.IndexPath = filepath.Join(c.Workdir, "index")
	} else {
		c.Search.IndexPath = expandPath(c.Search.IndexPath, configDir)
	}
	if c.Tools.TessdataDir != "" {
		c.Tools.TessdataDir = expandPath(c.Tools.TessdataDir, configDir)
	}
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	switch c.Portal.DownloadMode {
	case DownloadArchive, DownloadItemized:
	default:
		return fmt.Errorf("invalid portal.download_mode %q: use %s or %s", c.Portal.DownloadMode, DownloadArchive, DownloadItemized)
	}
	switch c.Output.LinkMode {
	case LinkCopy, LinkSymlink:
	default:
		return fmt.Errorf("invalid output.link_mode %q: use %s or %s", c.Output.LinkMode, LinkCopy, LinkSymlink)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.OCR.DPI <= 0 {
		return fmt.Errorf("invalid ocr.dpi %d", c.OCR.DPI)
	}
	return nil
}

// ValidateTools checks that the OCR programs can be found. lookPath is exec.LookPath when nil.
// The office converter is optional and not checked.
func (c *Config) ValidateTools(lookPath func(string) (string, error)) error {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	for name, bin := range map[string]string{"tesseract": c.Tools.Tesseract, "pdftoppm": c.Tools.Pdftoppm} {
		if _, err := lookPath(bin); err != nil {
			return fmt.Errorf("tools.%s is incorrect (%q): %w", name, bin, err)
		}
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" and other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	path = strings.TrimPrefix(path, "~/")
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
