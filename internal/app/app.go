package app

import "time"

// Clock supplies "now". Injected so slot generation and admission are
// deterministic under test; nothing in the engine reads the system clock
// directly.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always reports the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// App wires the scheduling engine to its collaborators.
type App struct {
	Store Store
	Clock Clock
}

func New(store Store) *App {
	return &App{Store: store, Clock: systemClock{}}
}
