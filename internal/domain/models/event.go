package models

// EventKind discriminates MarketEvent payloads.
type EventKind string

const (
	EventMarketUpdate      EventKind = "MARKET_UPDATE"
	EventOptionChainUpdate EventKind = "OPTION_CHAIN_UPDATE"
	EventSentimentUpdate   EventKind = "SENTIMENT_UPDATE"
)

// MarketStructure is the swing-based trend read of recent bars.
type MarketStructure struct {
	Regime  Regime `json:"regime"`
	Pattern string `json:"pattern,omitempty"`
}

// MarketEvent is the unit of pipeline dispatch.
type MarketEvent struct {
	Kind        EventKind          `json:"kind"`
	Timestamp   int64              `json:"timestamp"`
	Symbol      string             `json:"symbol"`
	Bar         *Bar               `json:"bar,omitempty"`
	Sentiment   *SentimentSnapshot `json:"sentiment,omitempty"`
	OptionChain []OptionChainRow   `json:"option_chain,omitempty"`
	Structure   *MarketStructure   `json:"structure,omitempty"`
}
