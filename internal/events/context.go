// Package events watches the host for state changes and reports each change
// as a Context on a source-owned channel.
package events

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// Context describes a single observed change. Keys are event specific and are
// exported to hooks as environment variables.
type Context map[string]string

// Environ returns the context as sorted KEY=VALUE pairs.
func (c Context) Environ() []string {
	env := make([]string, 0, len(c))
	for k, v := range c {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	slices.Sort(env)
	return env
}

// resolution is the base polling period; each source polls at a multiple of it.
const resolution = 2500 * time.Millisecond

// send delivers v on out unless ctx is cancelled first.
func send[T any](ctx context.Context, out chan<- T, v T) bool {
	select {
	case out <- v:
		return true
	case <-ctx.Done():
		return false
	}
}

// sleep waits for d and reports false if ctx was cancelled in the meantime.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

type set[E comparable] map[E]struct{}

func newSet[E comparable](vals ...E) set[E] {
	s := set[E]{}
	s.add(vals...)
	return s
}

func (s set[E]) contains(v E) bool {
	_, ok := s[v]
	return ok
}

func (s set[E]) add(vals ...E) {
	for _, v := range vals {
		s[v] = struct{}{}
	}
}

func (s set[E]) remove(v E) {
	delete(s, v)
}

// difference returns the members of s that are not in other.
func (s set[E]) difference(other set[E]) []E {
	var out []E
	for v := range s {
		if !other.contains(v) {
			out = append(out, v)
		}
	}
	return out
}

func (s set[E]) equal(other set[E]) bool {
	if len(s) != len(other) {
		return false
	}
	for v := range s {
		if !other.contains(v) {
			return false
		}
	}
	return true
}
