package models

// OptionChainRow is the call/put pair quoted at one strike.
type OptionChainRow struct {
	Strike     float64 `json:"strike"`
	CallVolume int64   `json:"call_volume"`
	PutVolume  int64   `json:"put_volume"`
	CallOI     int64   `json:"call_oi"`
	PutOI      int64   `json:"put_oi"`
	CallLTP    float64 `json:"call_ltp"`
	PutLTP     float64 `json:"put_ltp"`
}

// OptionChain is one fetch of the chain for an underlying.
type OptionChain struct {
	Underlying string           `json:"underlying"`
	Expiry     string           `json:"expiry"`
	Spot       float64          `json:"spot"`
	Rows       []OptionChainRow `json:"rows"`
}

// Totals sums volume and open interest across the chain.
func (c *OptionChain) Totals() (callVol, putVol, callOI, putOI int64) {
	if c == nil {
		return
	}
	for _, r := range c.Rows {
		callVol += r.CallVolume
		putVol += r.PutVolume
		callOI += r.CallOI
		putOI += r.PutOI
	}
	return
}
