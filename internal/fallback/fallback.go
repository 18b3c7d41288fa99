// Package fallback provides the static coin list shown when the market
// fetch fails, so the markets section is never blank.
package fallback

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/atmx/userpanel/internal/model"
)

//go:embed coins.yaml
var embeddedCoins []byte

// DefaultNotice is shown alongside fallback data when the dataset has none.
const DefaultNotice = "Live prices are unavailable."

var ErrEmptyDataset = errors.New("fallback: dataset has no coins")

// Source is an immutable fallback dataset.
type Source struct {
	notice string
	coins  []model.Coin
}

type fileCoin struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Symbol         string `yaml:"symbol"`
	CurrentPrice   string `yaml:"current_price"`
	PriceChange24h string `yaml:"price_change_24h"`
	Volume24h      string `yaml:"volume_24h"`
	LogoURL        string `yaml:"logo_url"`
}

type file struct {
	Notice string     `yaml:"notice"`
	Coins  []fileCoin `yaml:"coins"`
}

// Default returns the embedded dataset.
func Default() *Source {
	s, err := Parse(embeddedCoins)
	if err != nil {
		panic(fmt.Sprintf("fallback: embedded dataset: %v", err))
	}
	return s
}

// Load reads a dataset from path. An empty path returns Default.
func Load(path string) (*Source, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fallback: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML dataset.
func Parse(data []byte) (*Source, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("fallback: decode yaml: %w", err)
	}
	if len(f.Coins) == 0 {
		return nil, ErrEmptyDataset
	}

	coins := make([]model.Coin, 0, len(f.Coins))
	for i, fc := range f.Coins {
		if fc.Symbol == "" {
			return nil, fmt.Errorf("fallback: coin %d has no symbol", i)
		}
		c := model.Coin{
			ID:      model.ID(fc.ID),
			Name:    fc.Name,
			Symbol:  fc.Symbol,
			LogoURL: fc.LogoURL,
		}
		if c.ID == "" {
			c.ID = model.ID("fallback-" + fc.Symbol)
		}
		var err error
		if c.CurrentPrice, err = parseDecimal(fc.CurrentPrice); err != nil {
			return nil, fmt.Errorf("fallback: %s current_price: %w", fc.Symbol, err)
		}
		if c.PriceChange24h, err = parseDecimal(fc.PriceChange24h); err != nil {
			return nil, fmt.Errorf("fallback: %s price_change_24h: %w", fc.Symbol, err)
		}
		if c.Volume24h, err = parseDecimal(fc.Volume24h); err != nil {
			return nil, fmt.Errorf("fallback: %s volume_24h: %w", fc.Symbol, err)
		}
		coins = append(coins, c)
	}

	notice := f.Notice
	if notice == "" {
		notice = DefaultNotice
	}
	return &Source{notice: notice, coins: coins}, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// Coins returns a copy of the dataset.
func (s *Source) Coins() []model.Coin {
	return append([]model.Coin{}, s.coins...)
}

// Notice is the message shown while fallback data is displayed.
func (s *Source) Notice() string { return s.notice }
