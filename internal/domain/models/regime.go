package models

// Regime is a coarse directional sentiment label.
type Regime string

const (
	RegimeCompleteBullish Regime = "COMPLETE_BULLISH"
	RegimeBullish         Regime = "BULLISH"
	RegimeSideways        Regime = "SIDEWAYS"
	RegimeBearish         Regime = "BEARISH"
	RegimeCompleteBearish Regime = "COMPLETE_BEARISH"
)

// IsValid reports whether r is one of the known labels.
func (r Regime) IsValid() bool {
	switch r {
	case RegimeCompleteBullish, RegimeBullish, RegimeSideways, RegimeBearish, RegimeCompleteBearish:
		return true
	}
	return false
}

// Score maps a regime onto -2..2 for gauges.
func (r Regime) Score() float64 {
	switch r {
	case RegimeCompleteBullish:
		return 2
	case RegimeBullish:
		return 1
	case RegimeBearish:
		return -1
	case RegimeCompleteBearish:
		return -2
	}
	return 0
}

// SmartTrend is the price/OI change category of the option chain.
type SmartTrend string

const (
	TrendNone          SmartTrend = ""
	TrendLongBuildup   SmartTrend = "Long Buildup"
	TrendShortBuildup  SmartTrend = "Short Buildup"
	TrendShortCovering SmartTrend = "Short Covering"
	TrendLongUnwinding SmartTrend = "Long Unwinding"
)
