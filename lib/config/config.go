// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable consulted by [Resolve].
const EnvVar = "PRY_CONFIG"

// Config is the node configuration.
type Config struct {
	// Node identifies this process on the bridge network.
	Node NodeConfig `yaml:"node" json:"node"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths" json:"paths"`

	// Peers maps peer ids to their network addresses. A peer must also
	// appear in the keyring to be connectable.
	Peers map[string]PeerConfig `yaml:"peers" json:"peers"`

	// Pry configures take-over request handling.
	Pry PryConfig `yaml:"pry" json:"pry"`

	// Bridge configures outgoing remote sessions.
	Bridge BridgeConfig `yaml:"bridge" json:"bridge"`

	// Settings seeds the display settings store. Keys and values are
	// validated by the store, not here.
	Settings map[string]any `yaml:"settings" json:"settings"`
}

// NodeConfig identifies the local node.
type NodeConfig struct {
	// ID is the peer id other nodes use to reach this one.
	ID string `yaml:"id" json:"id"`

	// Listen is the TCP address the bridge host binds. Empty disables
	// serving inbound bridges.
	Listen string `yaml:"listen" json:"listen"`

	// KeyFile holds the node's Ed25519 private key, plain or sealed
	// with a passphrase.
	KeyFile string `yaml:"key_file" json:"key_file"`

	// Keyring is an authorized_keys style file listing trusted peers.
	Keyring string `yaml:"keyring" json:"keyring"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for node state.
	Root string `yaml:"root" json:"root"`

	// Units is where installed driver units are cached.
	Units string `yaml:"units" json:"units"`
}

// PeerConfig locates one peer.
type PeerConfig struct {
	Address string `yaml:"address" json:"address"`
}

// PryConfig configures take-over request handling.
type PryConfig struct {
	// Confirm asks the operator before granting a take-over request.
	Confirm bool `yaml:"confirm" json:"confirm"`

	// Timeout is the default wait for a grant, as a Go duration string.
	Timeout string `yaml:"timeout" json:"timeout"`
}

// BridgeConfig configures outgoing remote sessions.
type BridgeConfig struct {
	// ConnectTimeout bounds the dial plus handshake, as a Go duration.
	ConnectTimeout string `yaml:"connect_timeout" json:"connect_timeout"`
}

// Default returns the configuration used when no file is given, and the
// base every loaded file is merged onto.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "pry")
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "local"
	}

	return &Config{
		Node: NodeConfig{
			ID:      hostname,
			KeyFile: filepath.Join(defaultRoot, "node.key"),
			Keyring: filepath.Join(defaultRoot, "authorized_keys"),
		},
		Paths: PathsConfig{
			Root:  defaultRoot,
			Units: filepath.Join(defaultRoot, "units"),
		},
		Peers: map[string]PeerConfig{},
		Pry: PryConfig{
			Confirm: true,
			Timeout: "30s",
		},
		Bridge: BridgeConfig{
			ConnectTimeout: "10s",
		},
	}
}

// Resolve picks the configuration source: flagPath if non-empty, then
// the PRY_CONFIG environment variable, then [Default].
func Resolve(flagPath string) (*Config, error) {
	if flagPath != "" {
		return LoadFile(flagPath)
	}
	if envPath := os.Getenv(EnvVar); envPath != "" {
		return LoadFile(envPath)
	}
	cfg := Default()
	cfg.expandVariables()
	return cfg, nil
}

// LoadFile loads configuration from a specific file path and validates
// it. Fields absent from the file keep their [Default] values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := cfg.parse(path, data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) parse(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), c); err != nil {
			return fmt.Errorf("parsing JSONC: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing YAML: %w", err)
		}
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"PRY_ROOT": c.Paths.Root,
		"HOME":     os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["PRY_ROOT"] = c.Paths.Root

	c.Paths.Units = expandVars(c.Paths.Units, vars)
	c.Node.KeyFile = expandVars(c.Node.KeyFile, vars)
	c.Node.Keyring = expandVars(c.Node.Keyring, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}. Values in vars win over
// the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Node.ID == "" {
		errs = append(errs, errors.New("node.id is required"))
	}
	if c.Node.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Node.Listen); err != nil {
			errs = append(errs, fmt.Errorf("node.listen: %w", err))
		}
	}
	if c.Paths.Root == "" {
		errs = append(errs, errors.New("paths.root is required"))
	}

	for _, id := range c.PeerIDs() {
		peer := c.Peers[id]
		if id == c.Node.ID {
			errs = append(errs, fmt.Errorf("peers.%s: a node cannot list itself as a peer", id))
		}
		if _, _, err := net.SplitHostPort(peer.Address); err != nil {
			errs = append(errs, fmt.Errorf("peers.%s.address: %w", id, err))
		}
	}

	if _, err := parsePositiveDuration(c.Pry.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("pry.timeout: %w", err))
	}
	if _, err := parsePositiveDuration(c.Bridge.ConnectTimeout); err != nil {
		errs = append(errs, fmt.Errorf("bridge.connect_timeout: %w", err))
	}

	return errors.Join(errs...)
}

// PeerIDs returns the configured peer ids in sorted order.
func (c *Config) PeerIDs() []string {
	ids := make([]string, 0, len(c.Peers))
	for id := range c.Peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PryTimeout returns pry.timeout as a duration. Call after Validate.
func (c *Config) PryTimeout() time.Duration {
	d, _ := parsePositiveDuration(c.Pry.Timeout)
	return d
}

// ConnectTimeout returns bridge.connect_timeout as a duration. Call
// after Validate.
func (c *Config) ConnectTimeout() time.Duration {
	d, _ := parsePositiveDuration(c.Bridge.ConnectTimeout)
	return d
}

// EnsurePaths creates the configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.Root, c.Paths.Units} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

func parsePositiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", s)
	}
	return d, nil
}
