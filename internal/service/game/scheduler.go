package game

import (
	"time"

	"go.uber.org/zap"
)

// PhaseScheduler owns the single deadline of a session. Starting a new
// deadline cancels the previous one, and every deadline carries an epoch so an
// expiry that raced with cancellation can be recognised and dropped.
type PhaseScheduler struct {
	clock    Clock
	timer    Timer
	epoch    uint64
	deadline time.Time

	// onExpire is called from the timer goroutine
	onExpire func(phase Phase, epoch uint64)
}

func NewPhaseScheduler(clock Clock, onExpire func(phase Phase, epoch uint64)) *PhaseScheduler {
	return &PhaseScheduler{
		clock:    clock,
		onExpire: onExpire,
	}
}

// Start arms a deadline for phase, cancelling any pending one.
func (s *PhaseScheduler) Start(phase Phase, d time.Duration) uint64 {
	s.Cancel()

	epoch := s.epoch
	s.deadline = s.clock.Now().Add(d)
	s.timer = s.clock.AfterFunc(d, func() {
		s.onExpire(phase, epoch)
	})

	zap.L().Debug(
		"阶段计时器已启动",
		zap.String("phase", string(phase)),
		zap.Duration("duration", d),
		zap.Uint64("epoch", epoch),
	)

	return epoch
}

// Cancel stops the pending deadline, if any, and invalidates its epoch.
func (s *PhaseScheduler) Cancel() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	s.deadline = time.Time{}
	s.epoch++
}

// IsCurrent reports whether an expiry with this epoch belongs to the armed deadline.
func (s *PhaseScheduler) IsCurrent(epoch uint64) bool {
	return s.timer != nil && epoch == s.epoch
}

func (s *PhaseScheduler) Deadline() time.Time {
	return s.deadline
}
