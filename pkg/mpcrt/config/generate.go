package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/prss"
)

// Generate deals fresh PRSS keys and returns one configuration per player,
// in id order. Player i listens on hosts[i-1] (or the last host when fewer
// are given) at basePort+i-1. When certDir is not empty the TLS paths point
// at the files tlsnet writes there.
func Generate(n, t int, hosts []string, basePort int, certDir string, r io.Reader) ([]*ClusterConfig, error) {
	if len(hosts) == 0 {
		hosts = []string{"127.0.0.1"}
	}
	dealing, err := prss.Deal(n, t, r)
	if err != nil {
		return nil, err
	}

	players := make([]PlayerConfig, n)
	for i := range players {
		id := uint32(i + 1)
		p := PlayerConfig{ID: id, Host: hosts[min(i, len(hosts)-1)], Port: basePort + i}
		if certDir != "" {
			p.Cert = filepath.Join(certDir, "player-"+strconv.Itoa(i+1)+"-cert.pem")
			p.Key = filepath.Join(certDir, "player-"+strconv.Itoa(i+1)+"-key.pem")
		}
		players[i] = p
	}
	var caCert string
	if certDir != "" {
		caCert = filepath.Join(certDir, "rootCA.pem")
	}

	out := make([]*ClusterConfig, n)
	for i := range out {
		id := i + 1
		dk := make(map[string]map[string]string, n)
		for dealer, keys := range dealing.DealerKeys[id] {
			dk[strconv.Itoa(dealer)] = encodeKeys(keys)
		}
		out[i] = &ClusterConfig{
			Self:       uint32(id),
			Threshold:  t,
			CACert:     caCert,
			Players:    append([]PlayerConfig(nil), players...),
			PRSSKeys:   encodeKeys(dealing.Keys[id]),
			DealerKeys: dk,
		}
		if err := Validate(out[i]); err != nil {
			return nil, fmt.Errorf("generated config for player %d: %w", id, err)
		}
	}
	return out, nil
}

// Write encodes cfg as YAML to path with owner-only permissions.
func Write(cfg *ClusterConfig, path string) error {
	cleanPath, err := SecurePath(path)
	if err != nil {
		return fmt.Errorf("secure path: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(cleanPath, data, 0o600); err != nil { // #nosec G306 -- cleanPath validated by SecurePath
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
