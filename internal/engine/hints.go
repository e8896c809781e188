package engine

import (
	"cmp"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/exp/slices"

	"github.com/hailam/chesstutor/internal/board"
)

// HintCache memoizes ranked hint lists per position, color and depth.
// A nil *HintCache is valid and caches nothing.
type HintCache struct {
	cache *ristretto.Cache[uint64, []ScoredMove]
}

// NewHintCache creates a cache holding up to maxEntries ranked lists.
func NewHintCache(maxEntries int64) (*HintCache, error) {
	if maxEntries <= 0 {
		return nil, nil
	}
	c, err := ristretto.NewCache(&ristretto.Config[uint64, []ScoredMove]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &HintCache{cache: c}, nil
}

// hintKey hashes the position's FEN together with the ranking parameters.
func hintKey(pos *board.Position, color board.Color, depth int) uint64 {
	d := xxhash.New()
	d.WriteString(pos.ToFEN())
	d.WriteString("|")
	d.WriteString(color.String())
	d.WriteString("|")
	d.WriteString(strconv.Itoa(depth))
	return d.Sum64()
}

func (h *HintCache) get(key uint64) ([]ScoredMove, bool) {
	if h == nil {
		return nil, false
	}
	return h.cache.Get(key)
}

func (h *HintCache) put(key uint64, ranked []ScoredMove) {
	if h == nil {
		return
	}
	h.cache.Set(key, ranked, 1)
	h.cache.Wait()
}

// Clear drops every cached entry.
func (h *HintCache) Clear() {
	if h != nil {
		h.cache.Clear()
	}
}

// Close releases the cache's background goroutines.
func (h *HintCache) Close() {
	if h != nil {
		h.cache.Close()
	}
}

// RankMoves orders scored moves best first. Equal scores keep generation order.
func RankMoves(scored []ScoredMove) {
	slices.SortStableFunc(scored, func(a, b ScoredMove) int {
		return cmp.Compare(b.Score, a.Score)
	})
}

// firstN returns at most n leading entries as a fresh slice; n <= 0 means all.
func firstN(ranked []ScoredMove, n int) []ScoredMove {
	if n <= 0 || n > len(ranked) {
		n = len(ranked)
	}
	return slices.Clone(ranked[:n])
}
