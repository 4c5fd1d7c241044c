package models

// SentimentSnapshot is the option-derived sentiment for one instrument at one bar.
// Regime is empty until classified; see regime.Resolve.
type SentimentSnapshot struct {
	PCR         float64    `json:"pcr"`
	VolumePCR   float64    `json:"volume_pcr"`
	NetVolRSI   float64    `json:"net_vol_rsi"`
	SmartTrend  SmartTrend `json:"smart_trend,omitempty"`
	OIWallAbove float64    `json:"oi_wall_above"`
	OIWallBelow float64    `json:"oi_wall_below"`
	Regime      Regime     `json:"regime,omitempty"`
}

// MarketView is the read-side summary of one instrument's derived state.
type MarketView struct {
	Symbol      string            `json:"symbol"`
	Regime      Regime            `json:"regime"`
	Mirrored    Regime            `json:"mirrored_regime,omitempty"`
	NetVolRSI   *float64          `json:"net_vol_rsi,omitempty"`
	Structure   *MarketStructure  `json:"structure,omitempty"`
	LastBar     *Bar              `json:"last_bar,omitempty"`
	OIWallAbove float64           `json:"oi_wall_above,omitempty"`
	OIWallBelow float64           `json:"oi_wall_below,omitempty"`
	Errors      map[string]string `json:"errors,omitempty"`
}

// ChainView is the cached option chain of one instrument.
type ChainView struct {
	Symbol      string           `json:"symbol"`
	Spot        float64          `json:"spot"`
	OIWallAbove float64          `json:"oi_wall_above"`
	OIWallBelow float64          `json:"oi_wall_below"`
	Rows        []OptionChainRow `json:"rows"`
}
