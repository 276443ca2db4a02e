// Package ranking maps activity scores onto a 0-100 ranking.
package ranking

import (
	"fmt"
	"math"

	"github.com/BurntSushi/toml"
	"github.com/canopy-network/dropcamp/pkg/errs"
)

// Bounds of a non-zero ranking.
const (
	Min = 0.1
	Max = 100.0
)

// Curve is a Michaelis-Menten curve y = numerator*x / (denominator+x).
// Numerator is the asymptote; denominator is the score that reaches half of it.
type Curve struct {
	Numerator   float64 `toml:"numerator"`
	Denominator float64 `toml:"denominator"`
}

// Activity ranks one kind of on-chain activity.
type Activity struct {
	Weight float64 `toml:"weight"`
	Goal   uint32  `toml:"goal"`
	Curve  Curve   `toml:"curve"`
}

// Ranking maps score to 0 when the curve yields 0, otherwise to the curve value clamped to [Min, Max].
func (a Activity) Ranking(score float64) float64 {
	r := (a.Curve.Numerator * score) / (a.Curve.Denominator + score)
	if r == 0 || math.IsNaN(r) {
		return 0
	}
	return math.Min(math.Max(r, Min), Max)
}

// Group weighs the summed rankings of its activities.
type Group[T any] struct {
	Weight     float64 `toml:"weight"`
	Activities T       `toml:"activities"`
}

// Weighted returns weight times the sum of rankings.
func (g Group[T]) Weighted(rankings ...float64) float64 {
	var sum float64
	for _, r := range rankings {
		sum += r
	}
	return g.Weight * sum
}

// Social has no activities; its ranking is the soulbound social score times the group weight.
type Social struct{}

// Archway activities.
type Archway struct {
	Stake Activity `toml:"stake"`
	IBC   Activity `toml:"ibc"`
}

// Ecosystem activities.
type Ecosystem struct {
	ArchID        Activity `toml:"archid"`
	Astrovault    Activity `toml:"astrovault"`
	LiquidFinance Activity `toml:"liquid_finance"`
}

// Ranking is the full ranking configuration. It is read-only after Load.
type Ranking struct {
	Social    Group[*Social]   `toml:"social"`
	Archway   Group[Archway]   `toml:"archway"`
	Ecosystem Group[Ecosystem] `toml:"ecosystem"`
}

// SocialRanking is score*weight of the social group. Unlike activity rankings it is not clamped.
func (r *Ranking) SocialRanking(score uint16) float64 {
	return r.Social.Weighted(float64(score))
}

// Load reads a ranking TOML file.
func Load(path string) (*Ranking, error) {
	var r Ranking
	md, err := toml.DecodeFile(path, &r)
	if err != nil {
		return nil, errs.E(errs.ErrConfig, "load ranking "+path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errs.Ef(errs.ErrConfig, "load ranking "+path, "unknown keys %v", undecoded)
	}
	if err := r.Validate(); err != nil {
		return nil, errs.E(errs.ErrConfig, "load ranking "+path, err)
	}
	return &r, nil
}

// Validate rejects curves that cannot produce a ranking.
func (r *Ranking) Validate() error {
	for name, a := range r.activities() {
		if a.Curve.Numerator <= 0 {
			return fmt.Errorf("%s: curve numerator must be positive", name)
		}
		if a.Curve.Denominator <= 0 {
			return fmt.Errorf("%s: curve denominator must be positive", name)
		}
	}
	return nil
}

func (r *Ranking) activities() map[string]Activity {
	return map[string]Activity{
		"archway.stake":            r.Archway.Activities.Stake,
		"archway.ibc":              r.Archway.Activities.IBC,
		"ecosystem.archid":         r.Ecosystem.Activities.ArchID,
		"ecosystem.astrovault":     r.Ecosystem.Activities.Astrovault,
		"ecosystem.liquid_finance": r.Ecosystem.Activities.LiquidFinance,
	}
}

// Format renders a ranking with two decimals, as written to CSV.
func Format(r float64) string {
	return fmt.Sprintf("%.2f", r)
}
