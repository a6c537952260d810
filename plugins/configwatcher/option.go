package configwatcher

import "github.com/bft-labs/tickship/pkg/tickship"

// WithConfigWatcher returns a tickship Option that enables log level
// reloading from the configuration file.
//
// Usage:
//
//	ts, err := tickship.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path: "/etc/tickship/config.toml",
//	    }),
//	)
func WithConfigWatcher(cfg Config) tickship.Option {
	return tickship.WithPlugin(New(cfg))
}

// WithDefaultConfigWatcher watches Config.ConfigPath with default settings.
//
// Usage:
//
//	ts, err := tickship.New(cfg, configwatcher.WithDefaultConfigWatcher())
func WithDefaultConfigWatcher() tickship.Option {
	return WithConfigWatcher(DefaultConfig())
}
