package ids

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Generator hands out identifiers. Implementations must be safe for
// concurrent use and never repeat a value.
type Generator interface {
	OrderID() string
	TradeID() string
	AmendID() string
}

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// Random produces Kraken-shaped txids such as OQCLML-BW3P3-BUCMWZ.
type Random struct{}

func NewRandom() Random { return Random{} }

func (Random) OrderID() string { return txid('O') }

func (Random) TradeID() string { return txid('T') }

func (Random) AmendID() string { return uuid.NewString() }

func txid(prefix byte) string {
	var b strings.Builder
	b.Grow(19)
	b.WriteByte(prefix)
	for i, n := range []int{5, 5, 6} {
		if i > 0 {
			b.WriteByte('-')
		}
		for j := 0; j < n; j++ {
			b.WriteByte(alphabet[rand.IntN(len(alphabet))])
		}
	}
	return b.String()
}

// Sequence yields predictable ids (O-000001, T-000001, A-000001) for tests.
type Sequence struct {
	mu                  sync.Mutex
	orders, trades, ams int
}

func NewSequence() *Sequence { return &Sequence{} }

func (s *Sequence) OrderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders++
	return fmt.Sprintf("O-%06d", s.orders)
}

func (s *Sequence) TradeID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades++
	return fmt.Sprintf("T-%06d", s.trades)
}

func (s *Sequence) AmendID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ams++
	return fmt.Sprintf("A-%06d", s.ams)
}
