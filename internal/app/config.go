package app

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/raysh454/medtriage/internal/analyzer"
	"github.com/raysh454/medtriage/internal/kvstore"
	"github.com/raysh454/medtriage/internal/report"
	"github.com/raysh454/medtriage/internal/share"
	"github.com/raysh454/medtriage/internal/utils"
	"github.com/raysh454/medtriage/internal/webclient"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MEDTRIAGE_ANALYZER_ENDPOINT.
const EnvPrefix = "MEDTRIAGE"

// Config is the runtime configuration. Keys are snake_case in config files and
// upper-case with underscores in the environment.
type Config struct {
	// StorageRoot is the base path for the key-value store and exported reports.
	StorageRoot    string          `mapstructure:"storage_root"`
	StorageBackend kvstore.Backend `mapstructure:"storage_backend"`
	LogLevel       string          `mapstructure:"log_level"`

	Analyzer analyzer.Config   `mapstructure:"analyzer"`
	HTTP     webclient.Config  `mapstructure:"http"`
	Server   ServerConfig      `mapstructure:"server"`
	Report   ReportConfig      `mapstructure:"report"`
	Share    share.MinioConfig `mapstructure:"share"`
	Auth     AuthConfig        `mapstructure:"auth"`
}

type ServerConfig struct {
	ListenAddr     string   `mapstructure:"listen_addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// MaxUploadBytes bounds multipart uploads accepted by /scan/submit.
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`
}

type ReportConfig struct {
	// Dir receives exported artifacts. Empty means <storage_root>/reports.
	Dir    string        `mapstructure:"dir"`
	Format report.Format `mapstructure:"format"`
}

type AuthConfig struct {
	// PassphraseSHA256 enables the passphrase gate when set.
	PassphraseSHA256 string `mapstructure:"passphrase_sha256"`
}

// DefaultConfig returns a Config populated with sensible development defaults.
func DefaultConfig() *Config {
	return &Config{
		StorageRoot:    "~/.config/medtriage",
		StorageBackend: kvstore.BackendSQLite,
		LogLevel:       "info",
		Analyzer: analyzer.Config{
			Endpoint:    analyzer.DefaultEndpoint,
			FieldName:   analyzer.DefaultFieldName,
			ContentType: analyzer.DefaultContentType,
		},
		HTTP: webclient.Config{
			Timeout:      webclient.DefaultTimeout,
			MaxBodyBytes: webclient.DefaultMaxBodyBytes,
			UserAgent:    "medtriage/0.1",
		},
		Server: ServerConfig{
			ListenAddr:     "127.0.0.1:8080",
			AllowedOrigins: []string{"*"},
			MaxUploadBytes: 50 << 20,
		},
		Report: ReportConfig{
			Format: report.FormatHTML,
		},
		Share: share.MinioConfig{
			Region: "us-east-1",
			Bucket: "medtriage-reports",
			Prefix: "reports",
			Expiry: share.DefaultLinkExpiry,
		},
	}
}

// defaults flattens DefaultConfig into viper keys so every key is known to
// AutomaticEnv even when no config file sets it.
func defaults() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"storage_root":            d.StorageRoot,
		"storage_backend":         string(d.StorageBackend),
		"log_level":               d.LogLevel,
		"analyzer.endpoint":       d.Analyzer.Endpoint,
		"analyzer.field_name":     d.Analyzer.FieldName,
		"analyzer.content_type":   d.Analyzer.ContentType,
		"http.timeout":            d.HTTP.Timeout,
		"http.max_body_bytes":     d.HTTP.MaxBodyBytes,
		"http.user_agent":         d.HTTP.UserAgent,
		"server.listen_addr":      d.Server.ListenAddr,
		"server.allowed_origins":  d.Server.AllowedOrigins,
		"server.max_upload_bytes": d.Server.MaxUploadBytes,
		"report.dir":              d.Report.Dir,
		"report.format":           string(d.Report.Format),
		"share.endpoint":          d.Share.Endpoint,
		"share.region":            d.Share.Region,
		"share.bucket":            d.Share.Bucket,
		"share.access_key":        d.Share.AccessKey,
		"share.secret_key":        d.Share.SecretKey,
		"share.use_ssl":           d.Share.UseSSL,
		"share.prefix":            d.Share.Prefix,
		"share.expiry":            d.Share.Expiry,
		"auth.passphrase_sha256":  d.Auth.PassphraseSHA256,
	}
}

// ConfigureViper registers defaults and environment binding on v.
func ConfigureViper(v *viper.Viper) {
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// LoadConfig unmarshals v (already configured and read) into a Config and
// resolves paths.
func LoadConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	root, err := utils.ExpandPath(c.StorageRoot)
	if err != nil {
		return fmt.Errorf("expanding storage root path: %w", err)
	}
	c.StorageRoot = root
	if c.Report.Dir == "" {
		c.Report.Dir = filepath.Join(c.StorageRoot, "reports")
	} else if c.Report.Dir, err = utils.ExpandPath(c.Report.Dir); err != nil {
		return fmt.Errorf("expanding report dir: %w", err)
	}
	if c.Analyzer.Endpoint, err = utils.CanonicalEndpoint(c.Analyzer.Endpoint, "http"); err != nil {
		return fmt.Errorf("analyzer.endpoint: %w", err)
	}
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("http.timeout must not be negative, got %s", c.HTTP.Timeout)
	}
	if c.Share.Expiry <= 0 {
		c.Share.Expiry = share.DefaultLinkExpiry
	}
	if c.Share.Expiry > 7*24*time.Hour {
		return fmt.Errorf("share.expiry must be at most 7 days, got %s", c.Share.Expiry)
	}
	return nil
}
