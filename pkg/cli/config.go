package cli

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".voicekit"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
)

// Config represents the main configuration structure for a CLI app
type Config struct {
	// AppName is the application name (e.g., "voicekit")
	AppName string `yaml:"-"`

	// CurrentContext is the name of the currently active context
	CurrentContext string `yaml:"current_context,omitempty"`

	// Contexts is a map of context name to context configuration
	Contexts map[string]*Context `yaml:"contexts,omitempty"`

	// configPath is the path to the config file
	configPath string
}

// Context represents a single recognition gateway configuration
type Context struct {
	// Name is the context name
	Name string `yaml:"name"`

	// GatewayURL is the recognition gateway WebSocket endpoint
	GatewayURL string `yaml:"gateway_url,omitempty"`

	// APIKey is the gateway authentication token (optional)
	APIKey string `yaml:"api_key,omitempty"`

	// CaptureCommand overrides the default microphone capture command
	CaptureCommand string `yaml:"capture_command,omitempty"`

	// Extra stores application-specific settings
	Extra map[string]string `yaml:"extra,omitempty"`
}

// GetExtra returns an extra value for the context
func (ctx *Context) GetExtra(key string) string {
	if ctx.Extra == nil {
		return ""
	}
	return ctx.Extra[key]
}

// SetExtra sets an extra value for the context
func (ctx *Context) SetExtra(key, value string) {
	if ctx.Extra == nil {
		ctx.Extra = make(map[string]string)
	}
	ctx.Extra[key] = value
}

// LoadConfig loads the configuration for the given app, creating the
// config directory if needed.
func LoadConfig(appName string) (*Config, error) {
	paths, err := NewPaths(appName)
	if err != nil {
		return nil, err
	}
	return LoadConfigWithPath(appName, paths.ConfigFile())
}

// LoadConfigWithPath loads configuration from an explicit file path.
func LoadConfigWithPath(appName, path string) (*Config, error) {
	cfg := &Config{
		AppName:    appName,
		Contexts:   make(map[string]*Context),
		configPath: path,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	for name, ctx := range cfg.Contexts {
		if ctx.Name == "" {
			ctx.Name = name
		}
	}
	return cfg, nil
}

// LoadConfigIfExists loads the configuration if the file exists,
// returning nil otherwise. Commands that can run unconfigured use this
// to defer errors until a context is actually needed.
func LoadConfigIfExists(appName string) *Config {
	paths, err := NewPaths(appName)
	if err != nil {
		return nil
	}
	if _, err := os.Stat(paths.ConfigFile()); err != nil {
		return nil
	}
	cfg, err := LoadConfigWithPath(appName, paths.ConfigFile())
	if err != nil {
		return nil
	}
	return cfg
}

// Save writes the configuration back to its file.
func (c *Config) Save() error {
	if c.configPath == "" {
		paths, err := NewPaths(c.AppName)
		if err != nil {
			return err
		}
		if err := paths.EnsureAppDir(); err != nil {
			return err
		}
		c.configPath = paths.ConfigFile()
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(c.configPath, data, 0600)
}

// AddContext adds or replaces a context. The first context added
// becomes current.
func (c *Config) AddContext(ctx *Context) {
	if ctx.Name == "" {
		return
	}
	c.Contexts[ctx.Name] = ctx
	if c.CurrentContext == "" {
		c.CurrentContext = ctx.Name
	}
}

// RemoveContext deletes a context by name.
func (c *Config) RemoveContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
		for n := range c.Contexts {
			c.CurrentContext = n
			break
		}
	}
	return nil
}

// UseContext switches the current context.
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return nil
}

// ResolveContext returns the context by name, or the current context
// if name is empty.
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name == "" {
		name = c.CurrentContext
	}
	if name == "" {
		return nil, fmt.Errorf("no context selected, run: %s config add-context", c.AppName)
	}
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}
