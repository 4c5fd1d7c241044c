package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const SideBuy Side = "BUY"

type OptionType string

const (
	OptionCall OptionType = "CALL"
	OptionPut  OptionType = "PUT"
)

// TradeIntent is a directional entry decided by the signal handler.
// It is handed to an OrderExecutor and never placed with a broker here.
type TradeIntent struct {
	ID         string          `json:"id"`
	Instrument string          `json:"instrument"`
	Side       Side            `json:"side"`
	OptionType OptionType      `json:"option_type"`
	Price      decimal.Decimal `json:"price"`
	Regime     Regime          `json:"regime"`
	Structure  Regime          `json:"structure"`
	BarTime    int64           `json:"bar_time"`
	CreatedAt  time.Time       `json:"created_at"`
}
