package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar counts the finished steps of a long running activity, such
// as the clock edges of a reset sequence.
type ProgressBar struct {
	lock      sync.Mutex
	ID        string
	Name      string
	StartTime time.Time
	Total     uint64
	Finished  uint64
}

// IncrementFinished marks amount more steps as done. The count never passes
// the total.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.Finished += amount
	if b.Total > 0 && b.Finished > b.Total {
		b.Finished = b.Total
	}
}

type progressBarView struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Total      uint64  `json:"total"`
	Finished   uint64  `json:"finished"`
	Percent    float64 `json:"percent"`
	ElapsedSec float64 `json:"elapsed_sec"`
}

func (b *ProgressBar) view() progressBarView {
	b.lock.Lock()
	defer b.lock.Unlock()

	v := progressBarView{
		ID:         b.ID,
		Name:       b.Name,
		Total:      b.Total,
		Finished:   b.Finished,
		ElapsedSec: time.Since(b.StartTime).Seconds(),
	}

	if b.Total > 0 {
		v.Percent = 100 * float64(b.Finished) / float64(b.Total)
	}

	return v
}
