package services

import (
	"sync"
	"time"
)

const (
	DefaultRotateInterval = 8 * time.Second
	DefaultPageSize       = 6
)

// PageRotator advances the open cluster's answer page on a fixed interval.
// Opening another cluster or paging by hand restarts the interval.
type PageRotator struct {
	mu       sync.Mutex
	clock    Clock
	interval time.Duration
	cluster  string
	pages    int
	page     int
	timer    Timer
	gen      uint64
}

func NewPageRotator(clock Clock, interval time.Duration) *PageRotator {
	if clock == nil {
		clock = RealClock()
	}
	if interval <= 0 {
		interval = DefaultRotateInterval
	}
	return &PageRotator{clock: clock, interval: interval}
}

// Open shows page 0 of clusterID, which has pages pages.
func (r *PageRotator) Open(clusterID string, pages int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cluster = clusterID
	r.pages = pages
	r.page = 0
	r.restartLocked()
}

// Sync keeps the open cluster and page if clusterID is already open, adjusting
// to a changed page count; otherwise it opens clusterID.
func (r *PageRotator) Sync(clusterID string, pages int) int {
	r.mu.Lock()
	if r.cluster != clusterID {
		r.mu.Unlock()
		r.Open(clusterID, pages)
		return 0
	}
	defer r.mu.Unlock()
	if pages != r.pages {
		r.pages = pages
		if r.page >= pages {
			r.page = 0
		}
		r.restartLocked()
	}
	return r.page
}

func (r *PageRotator) Next() { r.step(1) }
func (r *PageRotator) Prev() { r.step(-1) }

func (r *PageRotator) step(d int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cluster == "" || r.pages <= 1 {
		return
	}
	r.page = ((r.page+d)%r.pages + r.pages) % r.pages
	r.restartLocked()
}

// Close stops rotation.
func (r *PageRotator) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.gen++
	r.cluster = ""
	r.pages = 0
	r.page = 0
}

// Page returns the open cluster and its current page.
func (r *PageRotator) Page() (string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cluster, r.page
}

func (r *PageRotator) restartLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.gen++
	if r.pages <= 1 {
		return
	}
	gen := r.gen
	r.timer = r.clock.AfterFunc(r.interval, func() { r.tick(gen) })
}

func (r *PageRotator) tick(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return
	}
	r.page = (r.page + 1) % r.pages
	r.restartLocked()
}
