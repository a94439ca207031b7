package prss

import (
	"fmt"
	"math/bits"
	"sort"
	"strconv"
	"strings"
)

// MaxPlayers bounds the player ids a Subset can hold.
const MaxPlayers = 64

// Subset is a set of player ids in 1..MaxPlayers stored as a bitmask.
type Subset uint64

// NewSubset returns the subset holding ids.
func NewSubset(ids ...int) Subset {
	var s Subset
	for _, id := range ids {
		s = s.With(id)
	}
	return s
}

// All returns {1, ..., n}.
func All(n int) Subset {
	if n >= MaxPlayers {
		return ^Subset(0)
	}
	return Subset(uint64(1)<<uint(n)-1)
}

func (s Subset) With(id int) Subset { return s | 1<<uint(id-1) }

func (s Subset) Contains(id int) bool {
	return id >= 1 && id <= MaxPlayers && s&(1<<uint(id-1)) != 0
}

func (s Subset) Len() int { return bits.OnesCount64(uint64(s)) }

// Players lists the members in increasing order.
func (s Subset) Players() []int {
	out := make([]int, 0, s.Len())
	for id := 1; id <= MaxPlayers; id++ {
		if s.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

// String formats the subset as space separated ids, e.g. "1 3 4".
func (s Subset) String() string {
	ids := s.Players()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, " ")
}

// ParseSubset is the inverse of String.
func ParseSubset(str string) (Subset, error) {
	var s Subset
	for _, part := range strings.Fields(str) {
		id, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("prss: bad subset %q: %w", str, err)
		}
		if id < 1 || id > MaxPlayers {
			return 0, fmt.Errorf("prss: player id %d out of range", id)
		}
		s = s.With(id)
	}
	return s, nil
}

// GenerateSubsets returns all subsets of {1..n} of the given size in
// increasing bitmask order.
func GenerateSubsets(n, size int) []Subset {
	if size < 0 || size > n || n > MaxPlayers {
		return nil
	}
	var out []Subset
	var rec func(next int, cur Subset, left int)
	rec = func(next int, cur Subset, left int) {
		if left == 0 {
			out = append(out, cur)
			return
		}
		for id := next; id <= n-left+1; id++ {
			rec(id+1, cur.With(id), left-1)
		}
	}
	rec(1, 0, size)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
