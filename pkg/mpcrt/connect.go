package mpcrt

import (
	"context"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/config"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/logging"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/prss"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/tlsnet"
)

// Connect establishes mutually authenticated TLS connections to every
// player in cfg and starts a runtime over them. It returns once all
// connections are up or ctx is done. ID, Players, Threshold and Transport
// in opts are taken from cfg; the other options are used as given.
func Connect(ctx context.Context, cfg *config.ClusterConfig, opts Options) (*Runtime, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, errorf("Connect", "%w: %v", ErrInvalidParameter, err)
	}
	self, ok := cfg.Player(cfg.Self)
	if !ok {
		return nil, errorf("Connect", "%w: player %d not in config", ErrInvalidParameter, cfg.Self)
	}
	keys, dealerKeys, err := cfg.Keys()
	if err != nil {
		return nil, errorf("Connect", "%w: %v", ErrInvalidParameter, err)
	}
	cert, err := tlsnet.LoadKeyPair(self.Cert, self.Key)
	if err != nil {
		return nil, errorf("Connect", "%w: %v", ErrInvalidParameter, err)
	}
	roots, err := tlsnet.LoadPool(cfg.CACert)
	if err != nil {
		return nil, errorf("Connect", "%w: %v", ErrInvalidParameter, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.New(nil)
	}
	peers := make([]tlsnet.Peer, 0, cfg.N())
	players := make([]Player, 0, cfg.N())
	for _, p := range cfg.Players {
		id := PlayerID(p.ID)
		peers = append(peers, tlsnet.Peer{ID: id, Address: p.Address(), Name: p.Host})
		player := Player{ID: id, Address: p.Address()}
		if id == PlayerID(cfg.Self) {
			player.Keys = keys
			player.DealerKeys = dealerKeys
		}
		players = append(players, player)
	}

	logger.Info(ctx, "connecting", logging.Player(cfg.Self), "players", cfg.N())
	tr, err := tlsnet.Dial(ctx, tlsnet.Config{
		Self:         PlayerID(cfg.Self),
		Peers:        peers,
		Certificate:  cert,
		RootCAs:      roots,
		VerifySerial: true,
		Logger:       logger,
	})
	if err != nil {
		return nil, errorf("Connect", "%w: %v", ErrTransport, err)
	}

	opts.ID = PlayerID(cfg.Self)
	opts.Players = players
	opts.Threshold = cfg.Threshold
	opts.Transport = tr
	opts.Logger = logger
	rt, err := New(opts)
	if err != nil {
		_ = tr.Close()
		return nil, err
	}
	return rt, nil
}

// PlayersFromDealing returns the Player list for player self of an
// in-process cluster dealt with prss.Deal.
func PlayersFromDealing(d *prss.Dealing, self PlayerID) []Player {
	players := make([]Player, d.N)
	for i := range players {
		id := PlayerID(i + 1)
		players[i] = Player{ID: id}
		if id == self {
			players[i].Keys = d.Keys[i+1]
			players[i].DealerKeys = d.DealerKeys[i+1]
		}
	}
	return players
}
