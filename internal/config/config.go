// Package config provides configuration management for flatwiki.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Permission levels for the wiki.
const (
	PermissionsPublic    = "public"
	PermissionsProtected = "protected"
	PermissionsSecure    = "secure"
	PermissionsPrivate   = "private"
)

// Config holds all configuration settings for the wiki.
type Config struct {
	// Core settings
	Debug      bool
	LogLevel   string
	LogFormat  string
	ContentDir string
	SecretKey  string

	// Site settings
	SiteName    string
	Permissions string

	// Content settings
	Markup       string
	Sort         string
	ReservedDirs []string

	// Version control
	VCS      string
	HgRemote string

	// External tools
	Rst2HTMLBin string
	Rst2PdfBin  string

	// Cache
	CacheURI string

	// Auth
	DefaultAuthenticationMethod string

	// Server
	Host string
	Port int
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Debug:                       false,
		LogLevel:                    "INFO",
		LogFormat:                   "text",
		ContentDir:                  "",
		SecretKey:                   "CHANGE ME",
		SiteName:                    "wiki",
		Permissions:                 PermissionsPublic,
		Markup:                      "markdown",
		Sort:                        "title",
		ReservedDirs:                []string{".git", ".hg", "cache", "templates", "uploads"},
		VCS:                         "git",
		HgRemote:                    "",
		Rst2HTMLBin:                 "rst2html5",
		Rst2PdfBin:                  "rst2pdf",
		CacheURI:                    "",
		DefaultAuthenticationMethod: "hash",
		Host:                        "",
		Port:                        8080,
	}
}

// LoadFromEnv loads configuration from environment variables.
func (c *Config) LoadFromEnv() {
	getEnv := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}

	getEnvBool := func(key string, fallback bool) bool {
		v := os.Getenv(key)
		if v == "" {
			return fallback
		}
		v = strings.ToLower(v)
		return v == "true" || v == "yes" || v == "on" || v == "1"
	}

	getEnvInt := func(key string, fallback int) int {
		v := os.Getenv(key)
		if v == "" {
			return fallback
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			return fallback
		}
		return i
	}

	c.Debug = getEnvBool("DEBUG", c.Debug)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.ContentDir = getEnv("CONTENT_DIR", c.ContentDir)
	c.SecretKey = getEnv("SECRET_KEY", c.SecretKey)

	c.SiteName = getEnv("SITE_NAME", c.SiteName)
	c.Permissions = strings.ToLower(getEnv("PERMISSIONS", c.Permissions))

	c.Markup = getEnv("MARKUP", c.Markup)
	c.Sort = getEnv("SORT", c.Sort)
	if v := os.Getenv("RESERVED_DIRS"); v != "" {
		var dirs []string
		for _, d := range strings.Split(v, ",") {
			if d = strings.TrimSpace(d); d != "" {
				dirs = append(dirs, d)
			}
		}
		c.ReservedDirs = dirs
	}

	c.VCS = strings.ToLower(getEnv("VCS", c.VCS))
	c.HgRemote = getEnv("HG_REMOTE", c.HgRemote)

	c.Rst2HTMLBin = getEnv("RST2HTML_BIN", c.Rst2HTMLBin)
	c.Rst2PdfBin = getEnv("RST2PDF_BIN", c.Rst2PdfBin)

	c.CacheURI = getEnv("CACHE_URI", c.CacheURI)

	c.DefaultAuthenticationMethod = getEnv("DEFAULT_AUTHENTICATION_METHOD", c.DefaultAuthenticationMethod)

	c.Host = getEnv("HOST", c.Host)
	c.Port = getEnvInt("PORT", c.Port)
}

// Validate checks that required configuration is set.
func (c *Config) Validate() error {
	if len(c.SecretKey) < 16 || c.SecretKey == "CHANGE ME" {
		return fmt.Errorf("please configure a random SECRET_KEY with a length of at least 16 characters")
	}
	if c.ContentDir == "" {
		return fmt.Errorf("please configure a CONTENT_DIR path")
	}
	if _, err := os.Stat(c.ContentDir); os.IsNotExist(err) {
		return fmt.Errorf("content directory '%s' not found", c.ContentDir)
	}
	switch c.VCS {
	case "", "git", "hg":
	default:
		return fmt.Errorf("unsupported VCS %q (want git, hg, or empty)", c.VCS)
	}
	return nil
}

// Load creates a new Config with defaults and loads from environment.
func Load() *Config {
	cfg := Default()
	cfg.LoadFromEnv()
	return cfg
}
