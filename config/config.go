package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Minio  MinioConfig  `yaml:"minio"`
	Vision VisionConfig `yaml:"vision"`
	Auth   AuthConfig   `yaml:"auth"`
	Roles  RolesConfig  `yaml:"roles"`
	Policy PolicyConfig `yaml:"policy"`
	Store  StoreConfig  `yaml:"store"`
	Log    LogConfig    `yaml:"log"`
	Users  []User       `yaml:"users"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

type VisionConfig struct {
	APIURL         string `yaml:"api_url"`
	APIToken       string `yaml:"api_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	WebhookSecret  string `yaml:"webhook_secret"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

// RolesConfig maps actor emails to roles by exact match. Anyone not listed
// is a submitter.
type RolesConfig struct {
	AdminEmail    string `yaml:"admin_email"`
	ApproverEmail string `yaml:"approver_email"`
}

type PolicyConfig struct {
	// RequireReceipt controls whether a claim needs at least one receipt
	// reference at creation. Defaults to true when omitted.
	RequireReceipt *bool `yaml:"require_receipt"`
}

// ReceiptRequired returns the effective receipt policy.
func (p *PolicyConfig) ReceiptRequired() bool {
	return p.RequireReceipt == nil || *p.RequireReceipt
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // memory or postgres
	DSN    string `yaml:"dsn"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

type User struct {
	ID       string `yaml:"id"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand ${VAR} references so secrets can stay in the environment
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Minio.ExpireDays == 0 {
		cfg.Minio.ExpireDays = 7
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}
	if cfg.Vision.TimeoutSeconds == 0 {
		cfg.Vision.TimeoutSeconds = 30
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "memory"
	}

	GlobalConfig = &cfg
	return &cfg, nil
}

// FindUser finds a user by email
func (c *Config) FindUser(email string) *User {
	for i := range c.Users {
		if c.Users[i].Email == email {
			return &c.Users[i]
		}
	}
	return nil
}
