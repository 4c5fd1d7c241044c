package models

// Requests for the read API. Defined in domain for consistency and reuse.

type CandlesRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required,symbol"`
	Date     string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
	Interval string `query:"interval" json:"interval" default:"1m" validate:"oneof=1m 5m 15m"`
	Mode     string `query:"mode" json:"mode" default:"live" validate:"oneof=live backtest"`
	Limit    int    `query:"limit" json:"limit" default:"1000" validate:"gte=1,lte=5000"`
}

type TradesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,symbol"`
	Date   string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type SymbolRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,symbol"`
}

type BackfillRequest struct {
	Symbol string `json:"symbol" validate:"required,symbol"`
}
