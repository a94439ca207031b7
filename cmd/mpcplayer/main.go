// Command mpcplayer runs one player of a cluster written by mpcgen.
//
// Every player secret-shares its input, then the cluster opens the sum and
// the product of all inputs and shuts down in step.
//
//	mpcplayer --config cluster/player-1.yaml --input 7
package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/config"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/field"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/logging"
)

func main() {
	fs := pflag.NewFlagSet("mpcplayer", pflag.ExitOnError)
	fs.StringP("config", "c", "", "player configuration file")
	fs.Int64P("input", "i", 0, "this player's input")
	fs.String("variant", "passive", "security variant: passive or active")
	fs.String("modulus", "2305843009213693951", "prime modulus of the computation field")
	fs.Duration("timeout", 2*time.Minute, "overall deadline")
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

	if v.GetString("config") == "" {
		log.Fatal("--config flag is required")
	}
	base, err := logging.NewHandler(os.Stderr, v.GetString("log-format"), v.GetString("log-level"))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	logger := logging.New(base)

	ctx, cancel := context.WithTimeout(context.Background(), v.GetDuration("timeout"))
	defer cancel()
	if err := run(ctx, v, logger); err != nil {
		logger.Error(ctx, "mpcplayer failed", "error", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, v *viper.Viper, logger logging.Logger) error {
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return err
	}
	variant, err := mpcrt.ParseVariant(v.GetString("variant"))
	if err != nil {
		return err
	}
	p, ok := new(big.Int).SetString(v.GetString("modulus"), 10)
	if !ok {
		return fmt.Errorf("modulus %q is not a number", v.GetString("modulus"))
	}
	f, err := field.NewPrime(p)
	if err != nil {
		return err
	}

	rt, err := mpcrt.Connect(ctx, cfg, mpcrt.Options{Variant: variant, Logger: logger})
	if err != nil {
		return err
	}
	defer rt.Close()

	var sum, product *mpcrt.Share
	err = rt.Exec(ctx, func() error {
		inputs, err := rt.Input(rt.Players(), f, f.FromInt(v.GetInt64("input")))
		if err != nil {
			return err
		}
		prod := inputs[0]
		for _, s := range inputs[1:] {
			if prod, err = rt.Mul(prod, s); err != nil {
				return err
			}
		}
		sum = rt.Open(rt.Sum(f, inputs...))
		product = rt.Open(prod)
		return nil
	})
	if err != nil {
		return err
	}

	s, err := sum.Await(ctx)
	if err != nil {
		return fmt.Errorf("open sum: %w", err)
	}
	m, err := product.Await(ctx)
	if err != nil {
		return fmt.Errorf("open product: %w", err)
	}
	fmt.Printf("player %d: sum=%s product=%s\n", rt.ID(), s.Big(), m.Big())

	return rt.Shutdown(ctx)
}
