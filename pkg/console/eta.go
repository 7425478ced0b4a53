package console

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/unitools/pkg/clock"
)

// ETA tracks progress through a known number of items.
type ETA struct {
	mu    sync.Mutex
	now   func() time.Time
	begin time.Time
	done  int
	total int
}

// NewETA starts tracking total items from now.
func NewETA(total int) *ETA {
	return &ETA{now: time.Now, begin: time.Now(), total: total}
}

// Add marks n more items as done.
func (e *ETA) Add(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.done += n
}

// Done returns the number of finished items.
func (e *ETA) Done() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// String renders "done/total (pct%) Speed: x/s TimeSpent: .. ETA: .." with an
// optional "[###...]" bar of barLength characters.
func (e *ETA) String(barLength int) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	elapsed := e.now().Sub(e.begin)

	pct := 100.0
	if e.total > 0 {
		pct = float64(e.done) * 100 / float64(e.total)
	}

	speed := "INF"
	if elapsed > 0 {
		speed = fmt.Sprintf("%.2f", float64(e.done)/elapsed.Seconds())
	}

	eta := "..."
	if e.done > 0 {
		remaining := time.Duration(float64(elapsed) * float64(e.total-e.done) / float64(e.done))
		eta = clock.FormatDuration(remaining)
	}

	bar := ""
	if barLength > 0 && e.total > 0 {
		filled := barLength * e.done / e.total
		empty := barLength * (e.total - e.done) / e.total
		bar = fmt.Sprintf(" [%s%s]", strings.Repeat("#", filled), strings.Repeat(".", max(empty, 0)))
	}

	return fmt.Sprintf("%d/%d (%.2f%%) Speed: %s/s TimeSpent: %s ETA: %s%s",
		e.done, e.total, pct, speed, clock.FormatDuration(elapsed), eta, bar)
}
