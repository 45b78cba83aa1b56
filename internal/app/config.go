package app

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the immutable snapshot handed to each component at construction.
// Any empty path or name disables the corresponding feature. Only the fields
// a runtime reload may change (home address, verbose) have live setters on
// the components that own them; everything else requires a restart.
type Config struct {
	SetName      string
	LogPath      string
	AuditPath    string
	PidFilePath  string
	HomeAddress  string
	PollTimeout  time.Duration
	BlockTimeout time.Duration
	ResolveWait  time.Duration
	Verbose      bool
	MetricsAddr  string
}

// SetDefaults installs defaults for every recognized key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("blocklist.set", "")
	v.SetDefault("blocklist.timeout_seconds", 5)
	v.SetDefault("log.path", "/var/log/auth.log")
	v.SetDefault("web.log.path", "/var/log/apache2/access.log")
	v.SetDefault("audit.path", "")
	v.SetDefault("web.audit.path", "")
	v.SetDefault("pidfile", "")
	v.SetDefault("home_address", "")
	v.SetDefault("poll_timeout_seconds", 10)
	v.SetDefault("resolver.timeout_seconds", 5)
	v.SetDefault("verbose", false)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9221")
	v.SetDefault("logging.level", "info")
}

// AuthConfig builds the auth-watcher snapshot from the loaded settings.
func AuthConfig(v *viper.Viper) Config {
	return Config{
		SetName:      v.GetString("blocklist.set"),
		LogPath:      v.GetString("log.path"),
		AuditPath:    v.GetString("audit.path"),
		PidFilePath:  v.GetString("pidfile"),
		HomeAddress:  v.GetString("home_address"),
		PollTimeout:  time.Duration(v.GetInt("poll_timeout_seconds")) * time.Second,
		BlockTimeout: time.Duration(v.GetInt("blocklist.timeout_seconds")) * time.Second,
		ResolveWait:  time.Duration(v.GetInt("resolver.timeout_seconds")) * time.Second,
		Verbose:      v.GetBool("verbose"),
		MetricsAddr:  metricsAddr(v),
	}
}

// WebConfig builds the web-watcher snapshot. The web watcher has its own
// source and audit target but shares the rest of the settings.
func WebConfig(v *viper.Viper) Config {
	cfg := AuthConfig(v)
	cfg.LogPath = v.GetString("web.log.path")
	cfg.AuditPath = v.GetString("web.audit.path")
	cfg.Verbose = false
	return cfg
}

func metricsAddr(v *viper.Viper) string {
	if !v.GetBool("metrics.enabled") {
		return ""
	}
	return v.GetString("metrics.addr")
}
