package upstox

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"NiftyPulse/internal/domain/models"
)

// Field numbers of the MarketDataFeedV3 schema that the engine reads.
// Everything else is skipped on the wire.
const (
	fieldResponseFeeds = 2 // FeedResponse.feeds: map<string, Feed>

	fieldMapKey   = 1
	fieldMapValue = 2

	fieldFeedLTPC     = 1 // Feed.ltpc
	fieldFeedFullFeed = 2 // Feed.fullFeed

	fieldFullMarketFF = 1 // FullFeed.marketFF
	fieldFullIndexFF  = 2 // FullFeed.indexFF

	fieldLTPCLtp = 1 // LTPC.ltp (double)

	// MarketFullFeed.marketOHLC is field 4, IndexFullFeed.marketOHLC is 2.
	fieldMarketFFLTPC = 1
	fieldMarketFFOHLC = 4
	fieldIndexFFLTPC  = 1
	fieldIndexFFOHLC  = 2

	fieldOHLCList = 1 // MarketOHLC.ohlc (repeated OHLC)

	fieldOHLCInterval = 1 // string
	fieldOHLCClose    = 5 // double
	fieldOHLCTs       = 7 // int64, epoch ms
)

type ohlcEntry struct {
	interval string
	close    float64
	tsMillis int64
}

type feedEntry struct {
	ltp     float64 // Feed.ltpc
	fullLTP float64 // ltpc inside the full feed
	ohlc    []ohlcEntry
}

// NormalizeFrame decodes one binary FeedResponse and extracts one tick per
// instrument that carries a 1m (I1) OHLC entry. BarTimestamp is the I1
// start in epoch seconds.
func NormalizeFrame(b []byte) ([]*models.Tick, error) {
	var out []*models.Tick
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if num != fieldResponseFeeds || typ != protowire.BytesType {
			return nil
		}
		key, fe, err := decodeFeedMapEntry(v)
		if err != nil {
			return err
		}
		if t := fe.tick(key); t != nil {
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upstox frame: %w", err)
	}
	return out, nil
}

func (fe *feedEntry) tick(key string) *models.Tick {
	for _, o := range fe.ohlc {
		if o.interval != "I1" {
			continue
		}
		ltp := fe.fullLTP
		if ltp == 0 {
			ltp = fe.ltp
		}
		if ltp == 0 {
			ltp = o.close
		}
		sec := o.tsMillis / 1000
		return &models.Tick{InstrumentKey: key, BarTimestamp: sec - sec%60, LastPrice: ltp}
	}
	return nil
}

func decodeFeedMapEntry(b []byte) (string, *feedEntry, error) {
	var (
		key string
		fe  = &feedEntry{}
	)
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case fieldMapKey:
			key = string(v)
		case fieldMapValue:
			return decodeFeed(v, fe)
		}
		return nil
	})
	return key, fe, err
}

func decodeFeed(b []byte, fe *feedEntry) error {
	return eachField(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case fieldFeedLTPC:
			ltp, err := decodeLTP(v)
			fe.ltp = ltp
			return err
		case fieldFeedFullFeed:
			return decodeFullFeed(v, fe)
		}
		return nil
	})
}

func decodeFullFeed(b []byte, fe *feedEntry) error {
	return eachField(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case fieldFullMarketFF:
			return decodeFull(v, fe, fieldMarketFFLTPC, fieldMarketFFOHLC)
		case fieldFullIndexFF:
			return decodeFull(v, fe, fieldIndexFFLTPC, fieldIndexFFOHLC)
		}
		return nil
	})
}

func decodeFull(b []byte, fe *feedEntry, ltpcField, ohlcField protowire.Number) error {
	return eachField(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case ltpcField:
			ltp, err := decodeLTP(v)
			fe.fullLTP = ltp
			return err
		case ohlcField:
			return eachField(v, func(n protowire.Number, t protowire.Type, item []byte, _ uint64) error {
				if n != fieldOHLCList || t != protowire.BytesType {
					return nil
				}
				o, err := decodeOHLC(item)
				if err == nil {
					fe.ohlc = append(fe.ohlc, o)
				}
				return err
			})
		}
		return nil
	})
}

func decodeLTP(b []byte) (float64, error) {
	var ltp float64
	err := eachField(b, func(num protowire.Number, typ protowire.Type, _ []byte, x uint64) error {
		if num == fieldLTPCLtp && typ == protowire.Fixed64Type {
			ltp = math.Float64frombits(x)
		}
		return nil
	})
	return ltp, err
}

func decodeOHLC(b []byte) (ohlcEntry, error) {
	var o ohlcEntry
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == fieldOHLCInterval && typ == protowire.BytesType:
			o.interval = string(v)
		case num == fieldOHLCClose && typ == protowire.Fixed64Type:
			o.close = math.Float64frombits(x)
		case num == fieldOHLCTs && typ == protowire.VarintType:
			o.tsMillis = int64(x)
		}
		return nil
	})
	return o, err
}

// eachField walks the top-level fields of one message. Length-delimited
// values arrive in v, scalar values (varint, fixed32, fixed64) in x.
func eachField(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		var (
			v []byte
			x uint64
		)
		switch typ {
		case protowire.VarintType:
			x, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			x, n = protowire.ConsumeFixed64(b)
		case protowire.Fixed32Type:
			var x32 uint32
			x32, n = protowire.ConsumeFixed32(b)
			x = uint64(x32)
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if err := fn(num, typ, v, x); err != nil {
			return err
		}
	}
	return nil
}
