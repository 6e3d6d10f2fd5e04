package present

// Config tunes result presentation. Zero values of CurrencySymbol, the
// bands and the caps select the defaults; the stock and day thresholds are
// used as given, so start from DefaultConfig.
type Config struct {
	CurrencySymbol    string
	TopBand           float64 // similarity above this reads as a top match
	GoodBand          float64 // similarity above this reads as a good match
	LowStockThreshold int     // stock at or below this reads as "only N left"
	FreshDays         int     // harvest age in days still called fresh
	ExpiringDays      int     // days before expiry that trigger a warning
	MaxSellingPoints  int
	MaxComplements    int
}

// DefaultConfig returns the presentation defaults.
func DefaultConfig() Config {
	return Config{
		CurrencySymbol:    "₱",
		TopBand:           0.8,
		GoodBand:          0.6,
		LowStockThreshold: 5,
		FreshDays:         3,
		ExpiringDays:      2,
		MaxSellingPoints:  3,
		MaxComplements:    3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CurrencySymbol == "" {
		c.CurrencySymbol = d.CurrencySymbol
	}
	if c.TopBand == 0 {
		c.TopBand = d.TopBand
	}
	if c.GoodBand == 0 {
		c.GoodBand = d.GoodBand
	}
	if c.MaxSellingPoints == 0 {
		c.MaxSellingPoints = d.MaxSellingPoints
	}
	if c.MaxComplements == 0 {
		c.MaxComplements = d.MaxComplements
	}
	return c
}
