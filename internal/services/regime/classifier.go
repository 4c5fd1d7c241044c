// Package regime maps sentiment snapshots to regime labels.
//
// Rule set, first match wins:
//
//	net_vol_rsi > 60 && volume_pcr < 0.8       COMPLETE_BULLISH
//	net_vol_rsi < 40 && volume_pcr > 1.2       COMPLETE_BEARISH
//	Long Buildup | Short Covering              BULLISH
//	Short Buildup | Long Unwinding             BEARISH
//	pcr > 1.2                                  BULLISH
//	pcr < 0.6                                  BEARISH
//	otherwise                                  SIDEWAYS
package regime

import "NiftyPulse/internal/domain/models"

const (
	rsiBullish  = 60.0
	rsiBearish  = 40.0
	vpcrBullish = 0.8
	vpcrBearish = 1.2
	pcrBullish  = 1.2
	pcrBearish  = 0.6
)

// Classify is a pure function of the snapshot fields. It ignores s.Regime.
func Classify(s models.SentimentSnapshot) models.Regime {
	if s.NetVolRSI > rsiBullish && s.VolumePCR < vpcrBullish {
		return models.RegimeCompleteBullish
	}
	if s.NetVolRSI < rsiBearish && s.VolumePCR > vpcrBearish {
		return models.RegimeCompleteBearish
	}
	switch s.SmartTrend {
	case models.TrendLongBuildup, models.TrendShortCovering:
		return models.RegimeBullish
	case models.TrendShortBuildup, models.TrendLongUnwinding:
		return models.RegimeBearish
	}
	switch {
	case s.PCR > pcrBullish:
		return models.RegimeBullish
	case s.PCR < pcrBearish:
		return models.RegimeBearish
	default:
		return models.RegimeSideways
	}
}

// Resolve returns s with Regime filled in. A snapshot that already carries
// a regime is returned unchanged, so resolving twice never relabels it.
func Resolve(s models.SentimentSnapshot) models.SentimentSnapshot {
	if s.Regime != "" {
		return s
	}
	s.Regime = Classify(s)
	return s
}
