package config

import (
	"path/filepath"
	"sync"
	"time"
)

type Config struct {
	Server         ServerConfig   `yaml:"server" mapstructure:"server"`
	Logging        LoggingConfig  `yaml:"logging" mapstructure:"logging"`
	Paths          PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Backend        BackendConfig  `yaml:"backend" mapstructure:"backend"`
	Transfer       TransferConfig `yaml:"transfer" mapstructure:"transfer"`
	Library        LibraryConfig  `yaml:"library" mapstructure:"library"`
	Authentication AuthConfig     `yaml:"authentication" mapstructure:"authentication"`
	OpenId         OpenIdConfig   `yaml:"openid" mapstructure:"openid"`
	AutoArchive    bool           `yaml:"auto_archive" mapstructure:"auto_archive"`
	path           string
}

type ServerConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Host    string `yaml:"host" mapstructure:"host"`
	Port    int    `yaml:"port" mapstructure:"port"`
}

type LoggingConfig struct {
	LogPath           string `yaml:"log_path" mapstructure:"log_path"`
	EnableFileLogging bool   `yaml:"enable_file_logging" mapstructure:"enable_file_logging"`
	Level             string `yaml:"level" mapstructure:"level"`
}

type PathsConfig struct {
	// root of the on-device media collections
	DownloadPath      string `yaml:"download_path" mapstructure:"download_path"`
	LocalDatabasePath string `yaml:"local_database_path" mapstructure:"local_database_path"`
	SettingsPath      string `yaml:"settings_path" mapstructure:"settings_path"`
}

// Download backend, the client credentials are optional
type BackendConfig struct {
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	TokenURL     string `yaml:"token_url" mapstructure:"token_url"`
	ClientId     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
}

type TransferConfig struct {
	MaxParallel      int           `yaml:"max_parallel" mapstructure:"max_parallel"`
	ProgressInterval time.Duration `yaml:"progress_interval" mapstructure:"progress_interval"`
}

type LibraryConfig struct {
	Collection string `yaml:"collection" mapstructure:"collection"`
}

type AuthConfig struct {
	RequireAuth  bool   `yaml:"require_auth" mapstructure:"require_auth"`
	Username     string `yaml:"username" mapstructure:"username"`
	PasswordHash string `yaml:"password" mapstructure:"password"`
	JWTSecret    string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
}

type OpenIdConfig struct {
	UseOpenId      bool     `yaml:"use_openid" mapstructure:"use_openid"`
	ProviderURL    string   `yaml:"openid_provider_url" mapstructure:"openid_provider_url"`
	ClientId       string   `yaml:"openid_client_id" mapstructure:"openid_client_id"`
	EmailWhitelist []string `yaml:"openid_email_whitelist" mapstructure:"openid_email_whitelist"`
}

var (
	instance     *Config
	instanceOnce sync.Once
)

func Instance() *Config {
	if instance == nil {
		instanceOnce.Do(func() {
			instance = &Config{}
			instance.Transfer.MaxParallel = 2
			instance.Transfer.ProgressInterval = time.Millisecond * 250
		})
	}
	return instance
}

func (c *Config) SetPath(path string) { c.path = path }

// Path of the directory containing the config file
func (c *Config) Dir() string { return filepath.Dir(c.path) }

// Absolute path of the config file
func (c *Config) Path() string { return c.path }
