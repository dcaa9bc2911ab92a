package universe

// DefaultTickers returns the 20 blue-chip research universe: 5 technology,
// 4 financial, 3 healthcare, 4 consumer, 3 industrial, 1 energy. Supplied as
// an explicit configuration value so runs stay reproducible; callers get a
// fresh copy every time.
func DefaultTickers() []string {
	return []string{
		// Technology
		"AAPL", "MSFT", "GOOGL", "AMZN", "META",
		// Financial
		"JPM", "BAC", "GS", "MS",
		// Healthcare
		"JNJ", "PFE", "UNH",
		// Consumer
		"PG", "KO", "WMT", "HD",
		// Industrial
		"BA", "CAT", "HON",
		// Energy
		"XOM",
	}
}
