// Package config loads and writes the per-player cluster configuration.
//
// A configuration file describes every player of the cluster (id, address,
// TLS material) and carries the PRSS keys of one player. Files are read with
// viper, so YAML, JSON and TOML all work and any scalar can be overridden
// from the environment with the MPCRT_ prefix (e.g. MPCRT_THRESHOLD=2).
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/prss"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "MPCRT"

// PlayerConfig describes one player.
type PlayerConfig struct {
	ID   uint32 `mapstructure:"id" yaml:"id"`
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	Cert string `mapstructure:"cert" yaml:"cert,omitempty"`
	Key  string `mapstructure:"key" yaml:"key,omitempty"`
}

// Address returns host:port.
func (p PlayerConfig) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// ClusterConfig is one player's view of the cluster.
type ClusterConfig struct {
	Self      uint32         `mapstructure:"self" yaml:"self"`
	Threshold int            `mapstructure:"threshold" yaml:"threshold"`
	CACert    string         `mapstructure:"ca_cert" yaml:"ca_cert,omitempty"`
	Players   []PlayerConfig `mapstructure:"players" yaml:"players"`

	// PRSSKeys maps a subset ("1 2") to a base64 key.
	PRSSKeys map[string]string `mapstructure:"prss_keys" yaml:"prss_keys,omitempty"`
	// DealerKeys maps a dealer id to that dealer's subset keys.
	DealerKeys map[string]map[string]string `mapstructure:"dealer_keys" yaml:"dealer_keys,omitempty"`
}

// N returns the number of players.
func (c *ClusterConfig) N() int { return len(c.Players) }

// Player returns the entry for id.
func (c *ClusterConfig) Player(id uint32) (PlayerConfig, bool) {
	for _, p := range c.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerConfig{}, false
}

// Load reads the file at path, applies environment overrides and validates
// the result.
func Load(path string) (*ClusterConfig, error) {
	absPath, err := SecurePath(path)
	if err != nil {
		return nil, fmt.Errorf("secure path: %w", err)
	}
	v := viper.New()
	v.SetConfigFile(absPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Decode(v)
}

// Decode unmarshals an already populated viper instance, for callers that
// bind command-line flags into it first.
func Decode(v *viper.Viper) (*ClusterConfig, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg ClusterConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// Unmarshal reads nested values from the file only; scalars may come
	// from the environment.
	cfg.Self = v.GetUint32("self")
	cfg.Threshold = v.GetInt("threshold")
	if s := v.GetString("ca_cert"); s != "" {
		cfg.CACert = s
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the cluster shape and that every file path stays inside
// the working directory. It does not open files.
func Validate(cfg *ClusterConfig) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	n := len(cfg.Players)
	if n < 2 {
		return errors.New("cluster must contain at least two players")
	}
	if n > prss.MaxPlayers {
		return fmt.Errorf("cluster has %d players, at most %d supported", n, prss.MaxPlayers)
	}
	if cfg.Threshold < 1 || cfg.Threshold >= n {
		return fmt.Errorf("threshold %d out of range 1..%d", cfg.Threshold, n-1)
	}
	if cfg.Self < 1 || int(cfg.Self) > n {
		return fmt.Errorf("self %d out of range 1..%d", cfg.Self, n)
	}
	if cfg.CACert != "" {
		if _, err := SecurePath(cfg.CACert); err != nil {
			return fmt.Errorf("ca_cert: %w", err)
		}
	}

	seenIDs := make(map[uint32]struct{}, n)
	seenAddresses := make(map[string]struct{}, n)
	for i, p := range cfg.Players {
		if p.ID < 1 || int(p.ID) > n {
			return fmt.Errorf("player[%d]: id %d out of range 1..%d", i, p.ID, n)
		}
		if _, ok := seenIDs[p.ID]; ok {
			return fmt.Errorf("duplicate player id %d", p.ID)
		}
		seenIDs[p.ID] = struct{}{}

		if p.Host == "" || p.Port <= 0 || p.Port > 65535 {
			return fmt.Errorf("player[%d]: invalid address %q", p.ID, p.Address())
		}
		if _, ok := seenAddresses[p.Address()]; ok {
			return fmt.Errorf("duplicate address %q", p.Address())
		}
		seenAddresses[p.Address()] = struct{}{}

		for _, path := range []string{p.Cert, p.Key} {
			if path == "" {
				continue
			}
			if _, err := SecurePath(path); err != nil {
				return fmt.Errorf("player[%d]: %w", p.ID, err)
			}
		}
	}
	return nil
}

// Keys decodes the PRSS keys of the configured player.
func (c *ClusterConfig) Keys() (prss.Keys, map[int]prss.Keys, error) {
	keys, err := decodeKeys(c.PRSSKeys)
	if err != nil {
		return nil, nil, fmt.Errorf("prss_keys: %w", err)
	}
	dealer := make(map[int]prss.Keys, len(c.DealerKeys))
	for idStr, m := range c.DealerKeys {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, nil, fmt.Errorf("dealer_keys: bad dealer %q", idStr)
		}
		dk, err := decodeKeys(m)
		if err != nil {
			return nil, nil, fmt.Errorf("dealer_keys[%d]: %w", id, err)
		}
		dealer[id] = dk
	}
	return keys, dealer, nil
}

func decodeKeys(m map[string]string) (prss.Keys, error) {
	out := make(prss.Keys, len(m))
	for subset, enc := range m {
		s, err := prss.ParseSubset(subset)
		if err != nil {
			return nil, err
		}
		key, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("subset %s: %w", s, err)
		}
		out[s] = key
	}
	return out, nil
}

func encodeKeys(k prss.Keys) map[string]string {
	out := make(map[string]string, len(k))
	for s, key := range k {
		out[s.String()] = base64.StdEncoding.EncodeToString(key)
	}
	return out
}

// SecurePath validates that a file path doesn't escape the working directory
// and returns its absolute form.
func SecurePath(path string) (string, error) {
	clean := filepath.Clean(path)
	absPath, err := filepath.Abs(clean)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	base, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	rel, err := filepath.Rel(base, absPath)
	if err != nil {
		return "", fmt.Errorf("relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes working directory", path)
	}
	return absPath, nil
}
