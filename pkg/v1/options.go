package v1

import "github.com/cortexhq/cortex/internal"

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	dir string
	cfg *internal.Config
}

// WithDir anchors the client at a specific project directory instead of
// resolving from the process working directory.
func WithDir(dir string) Option {
	return func(c *clientConfig) {
		c.dir = dir
	}
}

// WithConfig overrides the store configuration, bypassing the user's
// config file.
func WithConfig(cfg *internal.Config) Option {
	return func(c *clientConfig) {
		c.cfg = cfg
	}
}
