package sync

import (
	"time"

	"github.com/iudanet/worksync/internal/clock"
	"github.com/iudanet/worksync/internal/fingerprint"
)

// Scheduler реализует debounce с фиксированным окном: каждое реальное
// локальное изменение перезапускает таймер, по истечении которого
// коммитится последнее локальное состояние. Серия изменений в пределах окна
// превращается в одну транзакцию.
//
// Не потокобезопасен: вызывающий держит мьютекс движка. Колбэк fire получает
// поколение таймера; устаревшие срабатывания отсекаются через Fired.
type Scheduler struct {
	clock      clock.Clock
	timer      clock.Timer
	fire       func(generation uint64)
	window     time.Duration
	generation uint64
	deadline   int64
}

// NewScheduler creates a scheduler that calls fire when the window expires.
func NewScheduler(c clock.Clock, window time.Duration, fire func(generation uint64)) *Scheduler {
	return &Scheduler{clock: c, window: window, fire: fire}
}

// OnLocalChange вызывается после каждой локальной мутации с отпечатком
// нового состояния. Если содержимое не отличается от базового, ничего не
// происходит. Иначе pendingWriteAt выставляется сразу, а таймер перезапускается.
// Возвращает true, если коммит запланирован.
func (s *Scheduler) OnLocalChange(current fingerprint.Fingerprint, guard *LoopGuard) bool {
	if current == guard.Baseline() {
		return false
	}

	guard.MarkPending(s.clock.Now())
	s.Arm(s.window)

	return true
}

// Arm cancels any armed timer and arms a new one after d.
func (s *Scheduler) Arm(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.Stop()

	s.generation++
	generation := s.generation
	s.deadline = s.clock.Now() + clock.Millis(d)
	s.timer = s.clock.AfterFunc(d, func() {
		s.fire(generation)
	})
}

// ArmAt arms the timer for an absolute epoch-ms time.
// An already armed later deadline is kept.
func (s *Scheduler) ArmAt(at int64) {
	if s.Armed() && s.deadline >= at {
		return
	}
	s.Arm(time.Duration(at-s.clock.Now()) * time.Millisecond)
}

// Fired отмечает срабатывание таймера. Возвращает false для устаревшего поколения.
func (s *Scheduler) Fired(generation uint64) bool {
	if s.timer == nil || generation != s.generation {
		return false
	}
	s.timer = nil
	return true
}

// Stop cancels the armed timer, if any.
func (s *Scheduler) Stop() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Armed reports whether a commit is scheduled.
func (s *Scheduler) Armed() bool {
	return s.timer != nil
}

// Deadline returns when the armed timer fires, in epoch ms.
func (s *Scheduler) Deadline() int64 {
	if s.timer == nil {
		return 0
	}
	return s.deadline
}
