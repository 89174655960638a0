package sim

import (
	"log"
	"math"
)

// Freq defines the type of frequency
type Freq float64

// Defines the unit of frequency
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// FreqOf returns the frequency of a clock with the given period.
func FreqOf(period VTime) Freq {
	if period == 0 {
		log.Panic("period cannot be 0")
	}

	return Freq(float64(SEC) / float64(period))
}

// Period returns the time between two consecutive ticks
func (f Freq) Period() VTime {
	if f <= 0 {
		log.Panic("frequency must be positive")
	}

	return VTime(math.Round(float64(SEC) / float64(f)))
}

// Cycle converts a time to the number of whole cycles passed since time 0.
func (f Freq) Cycle(time VTime) uint64 {
	return uint64(time / f.Period())
}

// NCyclesLater returns the time after N cycles
func (f Freq) NCyclesLater(n int, now VTime) VTime {
	return now + VTime(n)*f.Period()
}
