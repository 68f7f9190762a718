package strategy

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"PivotScreener/internal/calculator"
	"PivotScreener/internal/model"
)

// AverageFunc returns the latest moving average of closes over period.
type AverageFunc func(closes []float64, period int) (float64, error)

// Evaluator runs both screening rules against one ticker's daily history.
type Evaluator struct {
	cfg     Config
	average AverageFunc
}

// NewEvaluator validates cfg. A nil average defaults to calculator.CalculateEMA.
func NewEvaluator(cfg Config, average AverageFunc) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("strategy config: %w", err)
	}
	if average == nil {
		average = calculator.CalculateEMA
	}
	return &Evaluator{cfg: cfg, average: average}, nil
}

// Config returns the thresholds in use.
func (e *Evaluator) Config() Config { return e.cfg }

// Evaluate classifies one ticker. It never panics and never returns an error: every failure is
// folded into the outcome status.
func (e *Evaluator) Evaluate(ticker string, bars []model.OHLCV) (out model.TickerOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = model.TickerOutcome{Ticker: ticker, Status: model.OutcomePanic, Reason: fmt.Sprint(r)}
		}
	}()
	return e.evaluate(ticker, bars)
}

func (e *Evaluator) evaluate(ticker string, bars []model.OHLCV) model.TickerOutcome {
	skip := func(status model.OutcomeStatus, format string, args ...any) model.TickerOutcome {
		return model.TickerOutcome{Ticker: ticker, Status: status, Reason: fmt.Sprintf(format, args...)}
	}

	daily := model.Series(model.CleanBars(bars))
	if len(daily) == 0 {
		return skip(model.OutcomeMissingData, "no usable bars")
	}
	if len(daily) < e.cfg.MinHistoryBars {
		return skip(model.OutcomeInsufficientHistory, "%d bars, need %d", len(daily), e.cfg.MinHistoryBars)
	}

	today, _ := daily.Current()
	yesterday, _ := daily.MostRecentCompleted()
	price := today.Close

	cprDaily, err := calculator.CPRFromBar(yesterday)
	if err != nil {
		return skip(model.OutcomeIndicatorFailed, "daily cpr: %v", err)
	}
	camDaily := calculator.CamarillaFromBar(yesterday, e.cfg.CamarillaCenter)

	monthlyBars, err := calculator.ToMonthly(daily)
	if err != nil {
		return skip(model.OutcomeAggregationFailed, "monthly: %v", err)
	}
	monthly := model.Series(monthlyBars)
	lastMonth, _ := monthly.MostRecentCompleted()
	cprMonthly, err := calculator.CPRFromBar(lastMonth)
	if err != nil {
		return skip(model.OutcomeIndicatorFailed, "monthly cpr: %v", err)
	}

	rangePct, err := calculator.RangePct(today, price)
	if err != nil {
		return skip(model.OutcomeIndicatorFailed, "range: %v", err)
	}

	closes := daily.Closes()
	emaFast := e.latestAverage(ticker, closes, e.cfg.EMAFastPeriod)
	emaSlow := e.latestAverage(ticker, closes, e.cfg.EMASlowPeriod)

	var tags []model.StrategyTag

	dojiOK, pattern := DojiSetup(e.cfg, DojiInput{
		Price:     price,
		Today:     today,
		CPR:       cprDaily,
		Camarilla: camDaily,
		EMAFast:   emaFast,
		EMASlow:   emaSlow,
	})
	if dojiOK {
		tags = append(tags, model.TagDojiSetup)
	}

	currBand, prevBand := e.bandSeries(daily, monthly)
	curr := calculator.CamarillaFromBar(currBand, e.cfg.CamarillaCenter)
	prev := calculator.CamarillaFromBar(prevBand, e.cfg.CamarillaCenter)
	if InsideCamarilla(curr, prev) {
		tags = append(tags, model.TagInsideCamarilla)
	}

	if len(tags) == 0 {
		return model.TickerOutcome{Ticker: ticker, Status: model.OutcomeNoMatch}
	}

	match := &model.StrategyMatch{
		Ticker:     ticker,
		Price:      calculator.Round2(price),
		RangePct:   calculator.Round2(rangePct),
		Strategies: tags,
		Daily: model.DailyMetrics{
			CPRWidth:  calculator.Round2(cprDaily.WidthPct),
			CamCenter: calculator.Round2(camDaily.Center),
			Pivot:     calculator.Round2(cprDaily.Pivot),
			Pattern:   pattern,
			EMAFast:   calculator.Round2(emaFast),
			EMASlow:   calculator.Round2(emaSlow),
		},
		Monthly: model.BandMetrics{
			Granularity: e.cfg.InsideGranularity,
			CurrH3:      calculator.Round2(curr.H3),
			PrevH3:      calculator.Round2(prev.H3),
			CurrL3:      calculator.Round2(curr.L3),
			PrevL3:      calculator.Round2(prev.L3),
			CurrH4:      calculator.Round2(curr.H4),
			PrevH4:      calculator.Round2(prev.H4),
			CurrL4:      calculator.Round2(curr.L4),
			PrevL4:      calculator.Round2(prev.L4),
			Pivot:       calculator.Round2(cprMonthly.Pivot),
		},
	}
	return model.TickerOutcome{Ticker: ticker, Status: model.OutcomeMatched, Match: match}
}

// bandSeries picks the reference bars for the Inside Camarilla comparison.
func (e *Evaluator) bandSeries(daily, monthly model.Series) (curr, prev model.OHLCV) {
	src := monthly
	if e.cfg.InsideGranularity == model.GranularityDaily {
		src = daily
	}
	curr, _ = src.MostRecentCompleted()
	prev, _ = src.ReferenceBeforeThat()
	return curr, prev
}

func (e *Evaluator) latestAverage(ticker string, closes []float64, period int) float64 {
	v, err := e.average(closes, period)
	if err != nil {
		log.Debug().Str("symbol", ticker).Int("period", period).Err(err).Msg("moving average unavailable")
		return 0
	}
	return v
}
