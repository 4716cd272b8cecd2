package hooks

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
)

type HookID uint64

// Hook runs Exec through the shell whenever an event of kind Event fires.
type Hook struct {
	Event EventKind `toml:"event" yaml:"event"`
	Exec  string    `toml:"exec" yaml:"exec"`
}

// ParseHook splits "<event-kind> <shell-command>" at the first space.
func ParseHook(args string) (Hook, error) {
	ev, exec, ok := strings.Cut(strings.TrimSpace(args), " ")
	if !ok || strings.TrimSpace(exec) == "" {
		return Hook{}, fmt.Errorf("%w: expected \"<event-kind> <command>\", got %q", ErrMalformedHook, args)
	}

	k, err := ParseEventKind(ev)
	if err != nil {
		return Hook{}, err
	}
	return Hook{Event: k, Exec: strings.TrimSpace(exec)}, nil
}

// DB is the hook registry. It is not safe for concurrent use; the dispatch
// loop owns the live instance and other goroutines hand it new DBs to merge.
type DB struct {
	hooks   map[HookID]Hook
	nextID  HookID
	buckets map[EventKind][]HookID
}

func NewDB() *DB {
	db := &DB{
		hooks:   make(map[HookID]Hook),
		buckets: make(map[EventKind][]HookID, len(Kinds)),
	}
	for _, k := range Kinds {
		db.buckets[k] = nil
	}
	return db
}

// NewDBFrom builds a DB from hs, logging and skipping any with unknown kinds.
func NewDBFrom(hs []Hook) *DB {
	db := NewDB()
	for _, h := range hs {
		if _, err := db.Add(h); err != nil {
			slog.Error("hook db: skipping hook", "event", h.Event, "exec", h.Exec, "error", err)
		}
	}
	return db
}

// Add registers h under the next id. A hook with an unrecognized kind is
// rejected and leaves the DB untouched.
func (db *DB) Add(h Hook) (HookID, error) {
	if !h.Event.IsValid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownEvent, h.Event)
	}

	id := db.nextID
	db.nextID++
	db.hooks[id] = h
	db.buckets[h.Event] = append(db.buckets[h.Event], id)
	return id, nil
}

// Merge adds every hook of other in id order and returns how many were
// accepted. Hooks already present are not deduplicated.
func (db *DB) Merge(other *DB) int {
	if other == nil {
		return 0
	}

	added := 0
	for _, id := range slices.Sorted(maps.Keys(other.hooks)) {
		h := other.hooks[id]
		if _, err := db.Add(h); err != nil {
			slog.Error("hook db: merge rejected hook", "event", h.Event, "exec", h.Exec, "error", err)
			continue
		}
		added++
	}
	return added
}

// Remove is not implemented yet: it reports success and keeps the hook.
func (db *DB) Remove(id HookID) error {
	slog.Debug("hook db: remove is a no-op", "id", id)
	return nil
}

// Lookup returns the hooks registered for k in registration order.
func (db *DB) Lookup(k EventKind) []Hook {
	ids := db.buckets[k]
	hs := make([]Hook, 0, len(ids))
	for _, id := range ids {
		h, ok := db.hooks[id]
		if !ok {
			slog.Warn("hook db: bucket references missing hook", "event", k, "id", id)
			continue
		}
		hs = append(hs, h)
	}
	return hs
}

// Bucket returns a copy of the ids registered for k.
func (db *DB) Bucket(k EventKind) []HookID {
	return slices.Clone(db.buckets[k])
}

// Get returns the hook registered under id.
func (db *DB) Get(id HookID) (Hook, bool) {
	h, ok := db.hooks[id]
	return h, ok
}

func (db *DB) Len() int {
	return len(db.hooks)
}

// NextID is the id the next successful Add will assign.
func (db *DB) NextID() HookID {
	return db.nextID
}

// Hooks returns every registered hook in id order.
func (db *DB) Hooks() []Hook {
	hs := make([]Hook, 0, len(db.hooks))
	for _, id := range slices.Sorted(maps.Keys(db.hooks)) {
		hs = append(hs, db.hooks[id])
	}
	return hs
}
