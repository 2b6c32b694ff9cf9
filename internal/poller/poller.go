// Package poller keeps the wall in step with the backend on fixed intervals.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	LoopAnswers   = "answers"
	LoopNewest    = "newest"
	LoopQuestions = "questions"
)

type Wall interface {
	Refresh(ctx context.Context) error
	RefreshQuestions(ctx context.Context) error
	Counts() (answers, clusters int)
}

type NewestSource interface {
	NewestAnswerID(ctx context.Context) (string, error)
}

type Tracker interface {
	Observe(id string) bool
	Prime(id string)
}

// Recorder receives the outcome of each tick; metrics implement it.
type Recorder interface {
	PollResult(loop string, err error)
	WallSize(answers, clusters int)
}

type Intervals struct {
	Answers   time.Duration
	Newest    time.Duration
	Questions time.Duration
}

func DefaultIntervals() Intervals {
	return Intervals{Answers: 5 * time.Second, Newest: 3 * time.Second, Questions: time.Minute}
}

// Poller runs one goroutine per loop. A slow tick delays that loop only; the
// ticker drops the ticks it missed.
type Poller struct {
	wall      Wall
	newest    NewestSource
	tracker   Tracker
	recorder  Recorder
	intervals Intervals
	logger    *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	primed bool
}

func New(wall Wall, newest NewestSource, tracker Tracker, recorder Recorder, intervals Intervals, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultIntervals()
	if intervals.Answers <= 0 {
		intervals.Answers = def.Answers
	}
	if intervals.Newest <= 0 {
		intervals.Newest = def.Newest
	}
	if intervals.Questions <= 0 {
		intervals.Questions = def.Questions
	}
	return &Poller{wall: wall, newest: newest, tracker: tracker, recorder: recorder, intervals: intervals, logger: logger}
}

// Start launches the loops. Calling Start twice is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.loop(ctx, LoopQuestions, p.intervals.Questions, p.pollQuestions)
	p.loop(ctx, LoopAnswers, p.intervals.Answers, p.pollAnswers)
	if p.newest != nil && p.tracker != nil {
		p.loop(ctx, LoopNewest, p.intervals.Newest, p.pollNewest)
	}
	p.logger.Info("poller started",
		zap.Duration("answers", p.intervals.Answers),
		zap.Duration("newest", p.intervals.Newest),
		zap.Duration("questions", p.intervals.Questions),
	)
}

// Stop cancels the loops and waits for in-flight ticks to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
	p.logger.Info("poller stopped")
}

func (p *Poller) loop(ctx context.Context, name string, every time.Duration, tick func(context.Context) error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			p.record(name, tick(ctx))
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()
}

func (p *Poller) record(loop string, err error) {
	if p.recorder != nil {
		p.recorder.PollResult(loop, err)
	}
	if err != nil {
		p.logger.Debug("poll failed", zap.String("loop", loop), zap.Error(err))
	}
}

func (p *Poller) pollAnswers(ctx context.Context) error {
	err := p.wall.Refresh(ctx)
	if p.recorder != nil {
		p.recorder.WallSize(p.wall.Counts())
	}
	return err
}

func (p *Poller) pollQuestions(ctx context.Context) error {
	return p.wall.RefreshQuestions(ctx)
}

func (p *Poller) pollNewest(ctx context.Context) error {
	id, err := p.newest.NewestAnswerID(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	first := !p.primed
	p.primed = true
	p.mu.Unlock()
	if first {
		// answers that predate this process are not anybody's fresh submission
		p.tracker.Prime(id)
		return nil
	}
	p.tracker.Observe(id)
	return nil
}
