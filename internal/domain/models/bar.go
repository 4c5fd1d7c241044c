package models

import (
	"fmt"
	"time"
)

// Bar is one closed OHLCV interval for an instrument.
// Timestamp is the bar start in epoch seconds.
type Bar struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// Time returns the bar start as time.Time.
func (b Bar) Time() time.Time { return time.Unix(b.Timestamp, 0) }

// Validate rejects bars that cannot be stored or dispatched.
func (b Bar) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("bar symbol empty")
	}
	if b.Timestamp <= 0 {
		return fmt.Errorf("bar timestamp invalid")
	}
	if b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0 || b.Volume < 0 {
		return fmt.Errorf("bar has negative fields")
	}
	if b.High < b.Low {
		return fmt.Errorf("bar high below low")
	}
	return nil
}

// Tick is a normalized feed record. BarTimestamp is the start of the
// 1m interval the tick belongs to.
type Tick struct {
	InstrumentKey string
	BarTimestamp  int64
	LastPrice     float64
}

// BarMessage is the bus envelope for a stored bar.
type BarMessage struct {
	Ticker   string `json:"ticker"`
	Venue    string `json:"venue"`
	Interval string `json:"interval"`
	Bar      Bar    `json:"bar"`
}
