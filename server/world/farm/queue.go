package farm

import (
	"encoding/json"
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrEmptyQueue is returned when dequeuing from a Queue without entries.
var ErrEmptyQueue = errors.New("queue is empty")

// Queue is an insertion ordered set of tracked blocks that still need to be evaluated periodically.
// Updating the state of a key already queued keeps its position.
type Queue struct {
	m *orderedmap.OrderedMap[PositionKey, State]
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{m: orderedmap.New[PositionKey, State]()}
}

// Enqueue adds key to the back of the queue, or updates its state in place if it is already queued.
func (q *Queue) Enqueue(key PositionKey, s State) {
	q.m.Set(key, s)
}

// Front returns the oldest entry without removing it, so that a caller may decide to requeue it instead.
func (q *Queue) Front() (PositionKey, State, error) {
	pair := q.m.Oldest()
	if pair == nil {
		return "", State{}, ErrEmptyQueue
	}
	return pair.Key, pair.Value, nil
}

// DequeueFront removes and returns the oldest entry.
func (q *Queue) DequeueFront() (PositionKey, State, error) {
	key, s, err := q.Front()
	if err != nil {
		return "", State{}, err
	}
	q.m.Delete(key)
	return key, s, nil
}

// Remove deletes key from the queue if present.
func (q *Queue) Remove(key PositionKey) bool {
	_, ok := q.m.Delete(key)
	return ok
}

// Get returns the queued state of key.
func (q *Queue) Get(key PositionKey) (State, bool) {
	return q.m.Get(key)
}

// Contains reports if key is queued.
func (q *Queue) Contains(key PositionKey) bool {
	_, ok := q.m.Get(key)
	return ok
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	return q.m.Len()
}

// Entries returns a copy of the queue in order.
func (q *Queue) Entries() []Entry {
	out := make([]Entry, 0, q.m.Len())
	for pair := q.m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Entry{Key: pair.Key, State: pair.Value})
	}
	return out
}

// MarshalJSON encodes the queue as an object of position keys to states, in queue order.
func (q *Queue) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.m)
}

// UnmarshalJSON replaces the queue with the document in b, keeping the order of its keys.
func (q *Queue) UnmarshalJSON(b []byte) error {
	m := orderedmap.New[PositionKey, State]()
	if err := json.Unmarshal(b, m); err != nil {
		return fmt.Errorf("decode queue document: %w", err)
	}
	q.m = m
	return nil
}
