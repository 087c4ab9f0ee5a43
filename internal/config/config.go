package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const configFileVar = "CONFIG_FILE"

type Config interface {
	EnvConfig
	DatabaseConfig
	AuthConfig
	GoogleConfig
	CorsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Database
	Auth
	Google
	Cors
}

// New builds the configuration. Values are resolved from the environment first, then from the
// optional TOML file named by CONFIG_FILE, then from built-in defaults.
func New() (Config, error) {
	file, err := loadFile(os.Getenv(configFileVar))
	if err != nil {
		return nil, err
	}
	return mainConfig{
		EnvVars:  EnvVars{file: file},
		Database: Database{file: file},
		Auth:     Auth{file: file},
		Google:   Google{file: file},
		Cors:     Cors{file: file},
	}, nil
}

// fileConfig mirrors the optional TOML configuration file.
type fileConfig struct {
	Port     string `toml:"port"`
	AppName  string `toml:"app_name"`
	Env      string `toml:"env"`
	BaseURL  string `toml:"base_url"`
	LogLevel string `toml:"log_level"`

	Database struct {
		Driver string `toml:"driver"`
		URL    string `toml:"url"`
	} `toml:"database"`

	Auth struct {
		OrgDomain          string   `toml:"org_domain"`
		AdminEmails        []string `toml:"admin_emails"`
		LocalSessionTTL    string   `toml:"local_session_ttl"`
		RememberSessionTTL string   `toml:"remember_session_ttl"`
		ExternalSessionTTL string   `toml:"external_session_ttl"`
		BcryptCost         int      `toml:"bcrypt_cost"`
		LoginRatePerMinute int      `toml:"login_rate_per_minute"`
		LoginRateBurst     int      `toml:"login_rate_burst"`
	} `toml:"auth"`

	Google struct {
		ClientID     string   `toml:"client_id"`
		ClientSecret string   `toml:"client_secret"`
		Issuers      []string `toml:"issuers"`
		StateSecret  string   `toml:"state_secret"`
	} `toml:"google"`

	Cors struct {
		AllowedOrigins []string `toml:"allowed_origins"`
	} `toml:"cors"`
}

func loadFile(path string) (*fileConfig, error) {
	fc := &fileConfig{}
	if path == "" {
		return fc, nil
	}
	if _, err := toml.DecodeFile(path, fc); err != nil {
		return nil, fmt.Errorf("[config.New] decode %s: %w", path, err)
	}
	return fc, nil
}
