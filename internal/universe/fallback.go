package universe

// fallbackSymbols are large caps used when neither the remote list nor any cache is usable.
var fallbackSymbols = []string{
	"RELIANCE", "TCS", "HDFCBANK", "ICICIBANK", "INFY",
	"ITC", "SBIN", "BHARTIARTL", "LICI", "HINDUNILVR",
}

// Fallback returns the embedded list with suffix applied.
func Fallback(suffix string) []string {
	out := make([]string, len(fallbackSymbols))
	for i, s := range fallbackSymbols {
		out[i] = s + suffix
	}
	return out
}
