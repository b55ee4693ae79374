package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"spot-sandbox/internal/model"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type pairEntry struct {
	model.Pair `yaml:",inline"`
	// Reference is the static reference price served for the pair.
	Reference string `yaml:"reference"`
}

type pairsFile struct {
	Pairs []pairEntry `yaml:"pairs"`
}

// Pairs is the tradeable pair table together with reference prices.
type Pairs struct {
	List   []model.Pair
	Prices map[string]decimal.Decimal
}

func LoadPairs(path string) (Pairs, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Pairs{}, fmt.Errorf("read pairs: %w", err)
	}
	return ParsePairs(raw)
}

func ParsePairs(raw []byte) (Pairs, error) {
	var f pairsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Pairs{}, fmt.Errorf("parse pairs: %w", err)
	}
	if len(f.Pairs) == 0 {
		return Pairs{}, errors.New("pairs file lists no pairs")
	}
	out := Pairs{Prices: make(map[string]decimal.Decimal, len(f.Pairs))}
	seen := make(map[string]bool)
	for i, e := range f.Pairs {
		p := e.Pair
		p.Name = strings.ToUpper(strings.TrimSpace(p.Name))
		p.AltName = strings.ToUpper(strings.TrimSpace(p.AltName))
		switch {
		case p.Name == "":
			return Pairs{}, fmt.Errorf("pair %d: name required", i)
		case p.Base == "" || p.Quote == "":
			return Pairs{}, fmt.Errorf("pair %s: base and quote required", p.Name)
		case seen[p.Name]:
			return Pairs{}, fmt.Errorf("pair %s listed twice", p.Name)
		}
		seen[p.Name] = true
		if p.Status == "" {
			p.Status = model.PairStatusOnline
		}
		out.List = append(out.List, p)
		if e.Reference == "" {
			continue
		}
		ref, err := decimal.NewFromString(e.Reference)
		if err != nil || !ref.IsPositive() {
			return Pairs{}, fmt.Errorf("pair %s: invalid reference %q", p.Name, e.Reference)
		}
		out.Prices[p.Name] = ref
	}
	return out, nil
}
