// Command mpcgen writes the configuration and TLS material of a cluster.
//
// For n players it deals PRSS keys and writes one file per player
// (player-<id>.yaml) holding the cluster layout and that player's keys,
// plus a CA and one certificate per player whose serial number is the
// player id.
//
//	mpcgen --players 3 --threshold 1 --out cluster
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/config"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/logging"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/tlsnet"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/transport"
)

func main() {
	fs := pflag.NewFlagSet("mpcgen", pflag.ExitOnError)
	fs.IntP("players", "n", 3, "number of players")
	fs.IntP("threshold", "t", 1, "number of corrupt players tolerated")
	fs.StringSlice("hosts", []string{"127.0.0.1"}, "player hosts, in id order; the last one repeats")
	fs.Int("base-port", 9000, "port of player 1; player i listens on base-port+i-1")
	fs.StringP("out", "o", "cluster", "output directory, relative to the working directory")
	fs.Bool("certs", true, "issue TLS certificates")
	fs.String("log-format", "text", "log format: text or json")
	fs.String("log-level", "info", "log level")
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		log.Fatalf("bind flags: %v", err)
	}
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()

	base, err := logging.NewHandler(os.Stderr, v.GetString("log-format"), v.GetString("log-level"))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	logger := logging.New(base)
	ctx := context.Background()

	if err := run(ctx, v, logger); err != nil {
		logger.Error(ctx, "mpcgen failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, v *viper.Viper, logger logging.Logger) error {
	n, t := v.GetInt("players"), v.GetInt("threshold")
	out := v.GetString("out")
	certDir := ""
	if v.GetBool("certs") {
		certDir = filepath.Join(out, "certs")
	}

	cfgs, err := config.Generate(n, t, v.GetStringSlice("hosts"), v.GetInt("base-port"), certDir, rand.Reader)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	for _, cfg := range cfgs {
		path := filepath.Join(out, fmt.Sprintf("player-%d.yaml", cfg.Self))
		if err := config.Write(cfg, path); err != nil {
			return err
		}
		logger.Info(ctx, "wrote config", logging.Player(cfg.Self), "path", path)
	}

	if certDir == "" {
		return nil
	}
	peers := make([]tlsnet.Peer, 0, n)
	for _, p := range cfgs[0].Players {
		peers = append(peers, tlsnet.Peer{ID: transport.PlayerID(p.ID), Address: p.Address(), Name: p.Host})
	}
	if err := tlsnet.GenerateCertificates(peers, certDir); err != nil {
		return fmt.Errorf("certificates: %w", err)
	}
	logger.Info(ctx, "wrote certificates", "dir", certDir, "players", n)
	return nil
}
