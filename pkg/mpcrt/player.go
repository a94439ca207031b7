package mpcrt

import (
	"math/big"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/prss"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/transport"
)

// PlayerID identifies a player. Valid ids are 1..n.
type PlayerID = transport.PlayerID

// Player describes one participant. Only the local player's keys are
// needed; the entries for other players may leave them empty.
type Player struct {
	ID      PlayerID
	Address string

	// Keys holds the PRSS keys of the subsets this player belongs to.
	Keys prss.Keys
	// DealerKeys[d] holds the PRSS keys this player knows for dealer d.
	DealerKeys map[int]prss.Keys
}

// prfCache builds PRFs once per output bound.
type prfCache struct {
	keys       prss.Keys
	dealerKeys map[int]prss.Keys

	plain  map[string]map[prss.Subset]*prss.PRF
	dealer map[string]map[int]map[prss.Subset]*prss.PRF
}

func newPRFCache(p Player) *prfCache {
	return &prfCache{
		keys:       p.Keys,
		dealerKeys: p.DealerKeys,
		plain:      make(map[string]map[prss.Subset]*prss.PRF),
		dealer:     make(map[string]map[int]map[prss.Subset]*prss.PRF),
	}
}

func (c *prfCache) prfs(max *big.Int) map[prss.Subset]*prss.PRF {
	k := max.String()
	if m, ok := c.plain[k]; ok {
		return m
	}
	m := c.keys.PRFs(max)
	c.plain[k] = m
	return m
}

func (c *prfCache) dealerPRFs(max *big.Int) map[int]map[prss.Subset]*prss.PRF {
	k := max.String()
	if m, ok := c.dealer[k]; ok {
		return m
	}
	m := make(map[int]map[prss.Subset]*prss.PRF, len(c.dealerKeys))
	for d, keys := range c.dealerKeys {
		m[d] = keys.PRFs(max)
	}
	c.dealer[k] = m
	return m
}
