package memory

import (
	"context"
	"strings"

	"spot-sandbox/internal/model"
	"spot-sandbox/internal/store"
)

// pairStore reads the immutable pair set; no locking is needed.
type pairStore struct {
	s *Store
}

func (p pairStore) Get(ctx context.Context, nameOrAlt string) (model.Pair, error) {
	pair, ok := p.s.pairs[strings.ToUpper(strings.TrimSpace(nameOrAlt))]
	if !ok || !pair.Online() {
		return model.Pair{}, store.ErrPairNotFound
	}
	return pair, nil
}

func (p pairStore) List(ctx context.Context) ([]model.Pair, error) {
	out := make([]model.Pair, len(p.s.pairList))
	copy(out, p.s.pairList)
	return out, nil
}
