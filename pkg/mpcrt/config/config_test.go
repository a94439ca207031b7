package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/prss"
)

func TestGenerateWriteLoad(t *testing.T) {
	t.Chdir(t.TempDir())

	cfgs, err := Generate(3, 1, []string{"127.0.0.1"}, 9000, "certs", nil)
	require.NoError(t, err)
	require.Len(t, cfgs, 3)

	for _, c := range cfgs {
		require.NoError(t, Write(c, filepath.Join("cluster", fmt.Sprintf("player-%d.yaml", c.Self))))
	}

	loaded := make([]*ClusterConfig, 3)
	for i := range loaded {
		c, err := Load(filepath.Join("cluster", fmt.Sprintf("player-%d.yaml", i+1)))
		require.NoError(t, err)
		loaded[i] = c
	}

	c1 := loaded[0]
	assert.Equal(t, uint32(1), c1.Self)
	assert.Equal(t, 1, c1.Threshold)
	assert.Equal(t, 3, c1.N())
	assert.Equal(t, filepath.Join("certs", "rootCA.pem"), c1.CACert)
	p2, ok := c1.Player(2)
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:9001", p2.Address())
	assert.Equal(t, filepath.Join("certs", "player-2-cert.pem"), p2.Cert)

	k1, d1, err := loaded[0].Keys()
	require.NoError(t, err)
	k2, d2, err := loaded[1].Keys()
	require.NoError(t, err)

	// Each player knows the n-t subsets it belongs to.
	assert.Len(t, k1, 2)
	shared := prss.NewSubset(1, 2)
	require.Contains(t, k1, shared)
	require.Contains(t, k2, shared)
	assert.Equal(t, k1[shared], k2[shared])
	assert.NotContains(t, k1, prss.NewSubset(2, 3))

	// A dealer knows every subset key it deals.
	assert.Len(t, d1[1], 3)
	assert.Len(t, d1[2], 2)
	assert.Equal(t, d1[3][shared], d2[3][shared])
}

func TestEnvironmentOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	cfgs, err := Generate(3, 1, nil, 7000, "", nil)
	require.NoError(t, err)
	require.NoError(t, Write(cfgs[0], "p1.yaml"))

	t.Setenv("MPCRT_THRESHOLD", "2")
	c, err := Load("p1.yaml")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Threshold)

	t.Setenv("MPCRT_THRESHOLD", "3")
	_, err = Load("p1.yaml")
	require.Error(t, err)
}

func TestLoadJSON(t *testing.T) {
	t.Chdir(t.TempDir())
	doc := `{
  "self": 2,
  "threshold": 1,
  "players": [
    {"id": 1, "host": "localhost", "port": 8001},
    {"id": 2, "host": "localhost", "port": 8002},
    {"id": 3, "host": "localhost", "port": 8003}
  ]
}`
	require.NoError(t, os.WriteFile("cluster.json", []byte(doc), 0o600))
	c, err := Load("cluster.json")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), c.Self)
	assert.Len(t, c.Players, 3)
}

func TestValidate(t *testing.T) {
	base := func() *ClusterConfig {
		return &ClusterConfig{
			Self:      1,
			Threshold: 1,
			Players: []PlayerConfig{
				{ID: 1, Host: "h", Port: 1},
				{ID: 2, Host: "h", Port: 2},
				{ID: 3, Host: "h", Port: 3},
			},
		}
	}
	require.NoError(t, Validate(base()))

	tests := []struct {
		name   string
		mutate func(*ClusterConfig)
	}{
		{"nil players", func(c *ClusterConfig) { c.Players = nil }},
		{"zero threshold", func(c *ClusterConfig) { c.Threshold = 0 }},
		{"threshold n", func(c *ClusterConfig) { c.Threshold = 3 }},
		{"self out of range", func(c *ClusterConfig) { c.Self = 4 }},
		{"id zero", func(c *ClusterConfig) { c.Players[0].ID = 0 }},
		{"duplicate id", func(c *ClusterConfig) { c.Players[1].ID = 1 }},
		{"duplicate address", func(c *ClusterConfig) { c.Players[1].Port = 1 }},
		{"bad port", func(c *ClusterConfig) { c.Players[2].Port = 0 }},
		{"escaping cert", func(c *ClusterConfig) { c.Players[0].Cert = "../../etc/passwd" }},
		{"escaping ca", func(c *ClusterConfig) { c.CACert = "../ca.pem" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			require.Error(t, Validate(c))
		})
	}
	require.Error(t, Validate(nil))
}

func TestSecurePath(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := SecurePath("a/b/../c")
	require.NoError(t, err)
	_, err = SecurePath("../outside")
	require.Error(t, err)
	_, err = SecurePath("/")
	require.Error(t, err)
}

func TestKeysRejectsBadInput(t *testing.T) {
	c := &ClusterConfig{PRSSKeys: map[string]string{"1 x": "AAAA"}}
	_, _, err := c.Keys()
	require.Error(t, err)

	c = &ClusterConfig{PRSSKeys: map[string]string{"1 2": "not base64!"}}
	_, _, err = c.Keys()
	require.Error(t, err)

	c = &ClusterConfig{DealerKeys: map[string]map[string]string{"one": {}}}
	_, _, err = c.Keys()
	require.Error(t, err)
}
