package slot

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog holds the games a server offers, in listing order
type Catalog struct {
	games map[string]*Game
	order []string
}

// NewCatalog validates defs and indexes them by id
func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{games: make(map[string]*Game, len(defs))}
	for _, def := range defs {
		if _, dup := c.games[def.ID]; dup {
			return nil, fmt.Errorf("game %s defined twice", def.ID)
		}
		g, err := NewGame(def)
		if err != nil {
			return nil, err
		}
		c.games[def.ID] = g
		c.order = append(c.order, def.ID)
	}
	return c, nil
}

// DefaultCatalog returns the built-in games
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(CandyConnect(), CrystalCluster())
	if err != nil {
		panic(err)
	}
	return c
}

type catalogFile struct {
	Games []Definition `yaml:"games"`
}

// ParseCatalog decodes a YAML catalog
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(file.Games) == 0 {
		return nil, fmt.Errorf("catalog defines no games")
	}
	return NewCatalog(file.Games...)
}

// LoadCatalog reads a YAML catalog from path
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// Get returns a game by id
func (c *Catalog) Get(id string) (*Game, bool) {
	g, ok := c.games[id]
	return g, ok
}

// List returns every game in listing order
func (c *Catalog) List() []*Game {
	out := make([]*Game, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.games[id])
	}
	return out
}

var candyValues = []ValueWeight{
	{Value: 2, Weight: 30}, {Value: 3, Weight: 22}, {Value: 4, Weight: 16},
	{Value: 5, Weight: 12}, {Value: 6, Weight: 8}, {Value: 8, Weight: 6},
	{Value: 10, Weight: 5}, {Value: 12, Weight: 4}, {Value: 15, Weight: 3},
	{Value: 20, Weight: 2.5}, {Value: 25, Weight: 2}, {Value: 50, Weight: 1},
	{Value: 100, Weight: 0.5}, {Value: 250, Weight: 0.1}, {Value: 500, Weight: 0.05},
}

var candySymbols = []SymbolWeight{
	{Symbol: "heart", Weight: 4}, {Symbol: "purple", Weight: 5}, {Symbol: "green", Weight: 6},
	{Symbol: "blue", Weight: 7}, {Symbol: "apple", Weight: 9}, {Symbol: "plum", Weight: 10},
	{Symbol: "melon", Weight: 11}, {Symbol: "grape", Weight: 12}, {Symbol: "banana", Weight: 14},
}

var candyPays = PayTable{
	"heart": 0.125, "purple": 0.0625, "green": 0.05,
	"blue": 0.04, "apple": 0.025, "plum": 0.02,
	"melon": 0.0125, "grape": 0.01, "banana": 0.005,
}

// CandyConnect is a 5x6 Connect game: any 8 matching symbols anywhere pay,
// with additive multiplier tiles that persist through free spins.
func CandyConnect() Definition {
	return Definition{
		ID:          "candy-connect",
		Name:        "Candy Connect",
		Rows:        5,
		Cols:        6,
		Strategy:    StrategyConnect,
		MinMatch:    8,
		Multipliers: PolicyAdditive,
		BaseWeights: WeightTable{
			Symbols:    candySymbols,
			Scatter:    1.6,
			Multiplier: 0.4,
			Values:     candyValues,
		},
		FreeWeights: WeightTable{
			Symbols:    candySymbols,
			Scatter:    1.4,
			Multiplier: 2.0,
			Values:     candyValues,
		},
		BasePays: candyPays,
		FreePays: candyPays,
		FreeSpins: BonusRules{
			TriggerScatters:   3,
			Award:             10,
			AwardPerExtra:     2,
			RetriggerAward:    5,
			RetriggerPerExtra: 1,
			MaxSpins:          200,
		},
		AnteCost:       1.5,
		AnteBoost:      2,
		BuyCost:        100,
		ForcedScatters: 3,
		MaxCascades:    100,
		MaxWin:         10000,
		MinStake:       0.20,
		MaxStake:       500,
	}
}

var crystalSymbols = []SymbolWeight{
	{Symbol: "ruby", Weight: 8}, {Symbol: "sapphire", Weight: 10}, {Symbol: "emerald", Weight: 12},
	{Symbol: "topaz", Weight: 14}, {Symbol: "amethyst", Weight: 16}, {Symbol: "onyx", Weight: 18},
	{Symbol: "pearl", Weight: 22},
}

var crystalPays = PayTable{
	"ruby": 0.05, "sapphire": 0.03, "emerald": 0.02, "topaz": 0.01,
	"amethyst": 0.006, "onyx": 0.004, "pearl": 0.0025,
}

// CrystalCluster is a 7x7 Cluster game: groups of 5 adjacent gems pay and every
// cleared position upgrades its hidden multiplier for the rest of the spin.
func CrystalCluster() Definition {
	return Definition{
		ID:          "crystal-cluster",
		Name:        "Crystal Cluster",
		Rows:        7,
		Cols:        7,
		Strategy:    StrategyCluster,
		MinMatch:    5,
		Multipliers: PolicyStaged,
		StageCap:    128,
		BaseWeights: WeightTable{Symbols: crystalSymbols, Scatter: 1.5},
		FreeWeights: WeightTable{Symbols: crystalSymbols, Scatter: 1.2},
		BasePays:    crystalPays,
		FreePays:    crystalPays,
		FreeSpins: BonusRules{
			TriggerScatters:   3,
			Award:             10,
			AwardPerExtra:     2,
			RetriggerAward:    5,
			RetriggerPerExtra: 2,
			MaxSpins:          200,
		},
		AnteCost:       1.5,
		AnteBoost:      2,
		BuyCost:        100,
		ForcedScatters: 3,
		MaxCascades:    100,
		MaxWin:         10000,
		MinStake:       0.20,
		MaxStake:       500,
	}
}
