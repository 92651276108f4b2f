package qpath

import (
	"sync"
	"time"
)

// Value wraps a job result with metadata
type Value struct {
	ID        string
	Value     any
	Error     error
	CreatedAt time.Time
}

/*
ResultSpace hands job results to whoever awaits them. A result stored before
anyone awaits it is kept until the first Await collects it.
*/
type ResultSpace struct {
	mu      sync.Mutex
	values  map[string]Value
	waiting map[string][]chan Value
}

func newResultSpace() *ResultSpace {
	return &ResultSpace{
		values:  make(map[string]Value),
		waiting: make(map[string][]chan Value),
	}
}

// Store records the outcome of job id and wakes its waiters.
func (rs *ResultSpace) Store(id string, value any, err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	v := Value{
		ID:        id,
		Value:     value,
		Error:     err,
		CreatedAt: time.Now(),
	}

	channels, ok := rs.waiting[id]
	if !ok {
		rs.values[id] = v
		return
	}

	for _, ch := range channels {
		ch <- v
		close(ch)
	}
	delete(rs.waiting, id)
}

// Await returns a channel that will receive the value when it's available
func (rs *ResultSpace) Await(id string) chan Value {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	ch := make(chan Value, 1)

	if v, ok := rs.values[id]; ok {
		ch <- v
		close(ch)
		delete(rs.values, id)
		return ch
	}

	rs.waiting[id] = append(rs.waiting[id], ch)
	return ch
}

// Pending reports how many results are stored but not yet collected.
func (rs *ResultSpace) Pending() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.values)
}
