package notifier

import (
	"fmt"
	"html"
	"strings"

	"PivotScreener/internal/model"
)

// maxPerStrategy keeps a report inside Telegram's 4096 character limit.
const maxPerStrategy = 25

// TradingViewURL links a ticker to its chart on the given exchange, e.g. "NSE".
func TradingViewURL(exchange, ticker string) string {
	return fmt.Sprintf("https://www.tradingview.com/chart/?symbol=%s:%s", exchange, ticker)
}

// FormatScanReport renders the matches grouped by strategy.
func FormatScanReport(res *model.ScanResult, exchange string) string {
	var b strings.Builder
	if res == nil || res.Report == nil {
		return "📭 No scan has completed yet."
	}
	rep := res.Report

	b.WriteString(fmt.Sprintf("📊 <b>Pivot Screener</b> | %s\n", rep.LastUpdated))
	if res.Status == model.ScanStatusDataSourceUnavailable {
		b.WriteString("\n⚠️ Market data source unavailable, no tickers were scanned.\n")
		if res.Diagnostics.Error != "" {
			b.WriteString(fmt.Sprintf("<code>%s</code>\n", html.EscapeString(res.Diagnostics.Error)))
		}
		return b.String()
	}
	b.WriteString(fmt.Sprintf("Scanned %d tickers, %d matched\n", rep.TotalScanned, len(rep.Stocks)))

	sections := []struct {
		tag   model.StrategyTag
		title string
		line  func(m model.StrategyMatch) string
	}{
		{model.TagDojiSetup, "🕯 <b>Tight CPR + Doji</b>", func(m model.StrategyMatch) string {
			return fmt.Sprintf("%s %.2f | CPR %.2f%% | %s", link(exchange, m.Ticker), m.Price, m.Daily.CPRWidth, m.Daily.Pattern)
		}},
		{model.TagInsideCamarilla, "📦 <b>Inside Camarilla</b>", func(m model.StrategyMatch) string {
			return fmt.Sprintf("%s %.2f | H3 %.2f / L3 %.2f", link(exchange, m.Ticker), m.Price, m.Monthly.CurrH3, m.Monthly.CurrL3)
		}},
	}
	for _, sec := range sections {
		matches := rep.Filter(sec.tag)
		b.WriteString(fmt.Sprintf("\n%s (%d)\n", sec.title, len(matches)))
		if len(matches) == 0 {
			b.WriteString("  none\n")
			continue
		}
		for i, m := range matches {
			if i == maxPerStrategy {
				b.WriteString(fmt.Sprintf("  … and %d more\n", len(matches)-maxPerStrategy))
				break
			}
			b.WriteString("  " + sec.line(m) + "\n")
		}
	}
	return b.String()
}

func link(exchange, ticker string) string {
	return fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(TradingViewURL(exchange, ticker)), html.EscapeString(ticker))
}

// FormatDiagnostics renders the per-ticker outcome counts of a run.
func FormatDiagnostics(res *model.ScanResult) string {
	if res == nil {
		return "📭 No scan has run yet."
	}
	d := res.Diagnostics
	var b strings.Builder
	b.WriteString("🩺 <b>Scan diagnostics</b>\n")
	b.WriteString(fmt.Sprintf("Status: %s\n", res.Status))
	b.WriteString(fmt.Sprintf("Universe: %d (%s)\n", d.Universe, d.Provenance))
	b.WriteString(fmt.Sprintf("Duration: %s\n", d.Duration.Round(1e6)))
	b.WriteString(fmt.Sprintf("Outcomes: %s\n", html.EscapeString(d.String())))
	return b.String()
}

// HelpText lists the bot commands.
func HelpText() string {
	return "🤖 <b>Commands</b>\n" +
		"/scan - run a scan now\n" +
		"/report - latest matches\n" +
		"/diag - diagnostics of the last run\n" +
		"/help - this message"
}
