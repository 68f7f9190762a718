package model

// CandlePattern labels a single-bar candlestick shape.
type CandlePattern string

const (
	PatternNone        CandlePattern = "None"
	PatternDoji        CandlePattern = "Doji"
	PatternHammer      CandlePattern = "Hammer"
	PatternSmallCandle CandlePattern = "SmallCandle"
)

// PatternResult is the output of the candle classifier.
type PatternResult struct {
	Matched bool
	Label   CandlePattern
}

// StrategyTag names a screening rule a ticker satisfied.
type StrategyTag string

const (
	TagDojiSetup       StrategyTag = "Doji_Setup"
	TagInsideCamarilla StrategyTag = "Inside_Camarilla"
)

// DailyMetrics is the display snapshot for the Doji/CPR setup.
type DailyMetrics struct {
	CPRWidth  float64       `json:"cpr_width"`
	CamCenter float64       `json:"cam_center"`
	Pivot     float64       `json:"pivot"`
	Pattern   CandlePattern `json:"pattern"`
	EMAFast   float64       `json:"ema_fast"`
	EMASlow   float64       `json:"ema_slow"`
}

// BandMetrics is the display snapshot for the Inside Camarilla setup.
// The JSON key stays "monthly" even when the daily granularity policy is active.
type BandMetrics struct {
	Granularity Granularity `json:"granularity"`
	CurrH3      float64     `json:"curr_h3"`
	PrevH3      float64     `json:"prev_h3"`
	CurrL3      float64     `json:"curr_l3"`
	PrevL3      float64     `json:"prev_l3"`
	CurrH4      float64     `json:"curr_h4"`
	PrevH4      float64     `json:"prev_h4"`
	CurrL4      float64     `json:"curr_l4"`
	PrevL4      float64     `json:"prev_l4"`
	Pivot       float64     `json:"pivot"`
}

// StrategyMatch is one qualifying ticker in a scan. It is not mutated after creation.
type StrategyMatch struct {
	Ticker     string        `json:"ticker"`
	Price      float64       `json:"price"`
	RangePct   float64       `json:"range_pct"`
	Strategies []StrategyTag `json:"strategies"`
	Daily      DailyMetrics  `json:"daily"`
	Monthly    BandMetrics   `json:"monthly"`
}

// Has reports whether the match carries tag.
func (m StrategyMatch) Has(tag StrategyTag) bool {
	for _, t := range m.Strategies {
		if t == tag {
			return true
		}
	}
	return false
}
