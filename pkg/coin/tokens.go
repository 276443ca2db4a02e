package coin

import (
	"github.com/BurntSushi/toml"
	"github.com/canopy-network/dropcamp/pkg/errs"
)

// TokenInfo describes one on-chain denomination.
type TokenInfo struct {
	Denom       string `toml:"denom"`
	Decimals    uint8  `toml:"decimals"`
	CoingeckoID string `toml:"coingecko_id"`
}

// TokenMap maps on-chain denoms (aarch, ibc/...) to their description.
type TokenMap map[string]TokenInfo

// LoadTokenMap reads a TOML table keyed by on-chain denom:
//
//	[aarch]
//	denom = "ARCH"
//	decimals = 18
//	coingecko_id = "archway"
func LoadTokenMap(path string) (TokenMap, error) {
	m := TokenMap{}
	md, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, errs.E(errs.ErrConfig, "load token map "+path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errs.Ef(errs.ErrConfig, "load token map "+path, "unknown keys %v", undecoded)
	}
	for denom, info := range m {
		if info.Denom == "" {
			info.Denom = denom
			m[denom] = info
		}
	}
	return m, nil
}

// Coin maps a raw chain balance. ok is false when the denom is not in the table.
func (m TokenMap) Coin(denom, raw string) (c Coin, ok bool, err error) {
	info, ok := m[denom]
	if !ok {
		return Coin{}, false, nil
	}
	c, err = New(info.Denom, raw, info.Decimals, info.CoingeckoID)
	return c, true, err
}
