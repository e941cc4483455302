// Package clock отделяет движок синхронизации от системного времени.
//
// Все отметки времени в документе - epoch миллисекунды. Таймеры debounce
// создаются через Clock.AfterFunc, чтобы тесты могли управлять временем вручную.
package clock

import "time"

// Timer is a cancellable pending callback.
type Timer interface {
	// Stop prevents the callback from firing.
	// Returns false if the callback has already fired or was stopped.
	Stop() bool
}

// Clock provides wall-clock time and timers.
type Clock interface {
	// Now returns the current time as epoch milliseconds.
	Now() int64

	// AfterFunc calls f in its own goroutine after d elapses.
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

// System returns the Clock backed by the time package.
func System() Clock {
	return systemClock{}
}

func (systemClock) Now() int64 {
	return time.Now().UnixMilli()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Millis converts a duration to milliseconds for arithmetic on epoch timestamps.
func Millis(d time.Duration) int64 {
	return d.Milliseconds()
}
