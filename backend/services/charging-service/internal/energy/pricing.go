package energy

import (
	"time"

	"github.com/shopspring/decimal"
)

// Period labels the pricing band an hour falls into.
type Period string

const (
	PeriodPeak     Period = "peak"
	PeriodOffPeak  Period = "off_peak"
	PeriodStandard Period = "standard"
)

// Window is an inclusive range of clock hours. A window whose start is after its end wraps
// past midnight (23-6 covers 23,0,1,...,6).
type Window struct {
	StartHour int `yaml:"startHour" json:"startHour"`
	EndHour   int `yaml:"endHour" json:"endHour"`
}

// Contains reports whether hour lies inside the window.
func (w Window) Contains(hour int) bool {
	if w.StartHour <= w.EndHour {
		return hour >= w.StartHour && hour <= w.EndHour
	}
	return hour >= w.StartHour || hour <= w.EndHour
}

// Tariff describes the time-of-day and load based price per kWh.
type Tariff struct {
	BaseRate          float64  `yaml:"baseRate" json:"baseRate"`
	PeakMultiplier    float64  `yaml:"peakMultiplier" json:"peakMultiplier"`
	OffPeakMultiplier float64  `yaml:"offPeakMultiplier" json:"offPeakMultiplier"`
	PeakWindows       []Window `yaml:"peakWindows" json:"peakWindows"`
	OffPeakWindows    []Window `yaml:"offPeakWindows" json:"offPeakWindows"`
	LoadThreshold     float64  `yaml:"loadThreshold" json:"loadThreshold"`
	LoadMultiplier    float64  `yaml:"loadMultiplier" json:"loadMultiplier"`
}

// DefaultTariff returns the standard schedule: x1.2 during 08-10 and 18-20, x0.8 during
// 23-06, and x1.1 on top when station load exceeds 80%.
func DefaultTariff(baseRate float64) Tariff {
	return Tariff{
		BaseRate:          baseRate,
		PeakMultiplier:    1.2,
		OffPeakMultiplier: 0.8,
		PeakWindows:       []Window{{StartHour: 8, EndHour: 10}, {StartHour: 18, EndHour: 20}},
		OffPeakWindows:    []Window{{StartHour: 23, EndHour: 6}},
		LoadThreshold:     0.8,
		LoadMultiplier:    1.1,
	}
}

// WithDefaults fills unset fields from DefaultTariff.
func (t Tariff) WithDefaults() Tariff {
	def := DefaultTariff(t.BaseRate)
	if t.PeakMultiplier <= 0 {
		t.PeakMultiplier = def.PeakMultiplier
	}
	if t.OffPeakMultiplier <= 0 {
		t.OffPeakMultiplier = def.OffPeakMultiplier
	}
	if len(t.PeakWindows) == 0 {
		t.PeakWindows = def.PeakWindows
	}
	if len(t.OffPeakWindows) == 0 {
		t.OffPeakWindows = def.OffPeakWindows
	}
	if t.LoadThreshold <= 0 {
		t.LoadThreshold = def.LoadThreshold
	}
	if t.LoadMultiplier <= 0 {
		t.LoadMultiplier = def.LoadMultiplier
	}
	return t
}

// PeriodAt classifies the clock hour. Peak windows win over off-peak ones.
func (t Tariff) PeriodAt(hour int) Period {
	for _, w := range t.PeakWindows {
		if w.Contains(hour) {
			return PeriodPeak
		}
	}
	for _, w := range t.OffPeakWindows {
		if w.Contains(hour) {
			return PeriodOffPeak
		}
	}
	return PeriodStandard
}

// DynamicPrice returns the rate for the clock hour and station load fraction, rounded to two
// decimals. The load surcharge is applied after the time-of-day multiplier.
func (t Tariff) DynamicPrice(hour int, loadFraction float64) float64 {
	rate := decimal.NewFromFloat(t.BaseRate)

	switch t.PeriodAt(hour) {
	case PeriodPeak:
		rate = rate.Mul(decimal.NewFromFloat(t.PeakMultiplier))
	case PeriodOffPeak:
		rate = rate.Mul(decimal.NewFromFloat(t.OffPeakMultiplier))
	}

	if loadFraction > t.LoadThreshold {
		rate = rate.Mul(decimal.NewFromFloat(t.LoadMultiplier))
	}

	return rate.Round(2).InexactFloat64()
}

// PriceAt evaluates DynamicPrice for an instant, read in loc when loc is non-nil.
func (t Tariff) PriceAt(now time.Time, loc *time.Location, loadFraction float64) float64 {
	if loc != nil {
		now = now.In(loc)
	}
	return t.DynamicPrice(now.Hour(), loadFraction)
}

// DynamicPrice applies the default schedule to baseRate.
func DynamicPrice(baseRate float64, hour int, loadFraction float64) float64 {
	return DefaultTariff(baseRate).DynamicPrice(hour, loadFraction)
}
