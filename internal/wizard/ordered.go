package wizard

import (
	"errors"

	"github.com/google/uuid"
)

// ErrUnknownItem is returned when an ID is not in the list.
var ErrUnknownItem = errors.New("unknown list item")

// OrderedList keeps rows in an explicit ID order. Rendering reads Items; drag
// and drop calls Move. display_order is the index at save time.
type OrderedList[T any] struct {
	ids   []string
	items map[string]T
}

// NewOrderedList returns an empty list.
func NewOrderedList[T any]() *OrderedList[T] {
	return &OrderedList[T]{items: map[string]T{}}
}

// Append adds item at the end and returns its ID.
func (l *OrderedList[T]) Append(item T) string {
	return l.Insert(len(l.ids), item)
}

// Insert adds item at index, clamped to the list bounds.
func (l *OrderedList[T]) Insert(index int, item T) string {
	if l.items == nil {
		l.items = map[string]T{}
	}
	id := uuid.NewString()
	index = clamp(index, len(l.ids))
	l.ids = append(l.ids, "")
	copy(l.ids[index+1:], l.ids[index:])
	l.ids[index] = id
	l.items[id] = item
	return id
}

// Remove drops id. It reports whether the item existed.
func (l *OrderedList[T]) Remove(id string) bool {
	idx := l.indexOf(id)
	if idx < 0 {
		return false
	}
	l.ids = append(l.ids[:idx], l.ids[idx+1:]...)
	delete(l.items, id)
	return true
}

// Move relocates id to index, clamped to the list bounds.
func (l *OrderedList[T]) Move(id string, index int) error {
	from := l.indexOf(id)
	if from < 0 {
		return ErrUnknownItem
	}
	l.ids = append(l.ids[:from], l.ids[from+1:]...)
	index = clamp(index, len(l.ids))
	l.ids = append(l.ids, "")
	copy(l.ids[index+1:], l.ids[index:])
	l.ids[index] = id
	return nil
}

// Update replaces the item stored under id.
func (l *OrderedList[T]) Update(id string, item T) error {
	if _, ok := l.items[id]; !ok {
		return ErrUnknownItem
	}
	l.items[id] = item
	return nil
}

// Get returns the item stored under id.
func (l *OrderedList[T]) Get(id string) (T, bool) {
	item, ok := l.items[id]
	return item, ok
}

// IDs returns the current order.
func (l *OrderedList[T]) IDs() []string {
	return append([]string(nil), l.ids...)
}

// Items returns the rows in order.
func (l *OrderedList[T]) Items() []T {
	out := make([]T, 0, len(l.ids))
	for _, id := range l.ids {
		out = append(out, l.items[id])
	}
	return out
}

// Len is the number of rows.
func (l *OrderedList[T]) Len() int {
	return len(l.ids)
}

func (l *OrderedList[T]) indexOf(id string) int {
	for i, existing := range l.ids {
		if existing == id {
			return i
		}
	}
	return -1
}

func clamp(index, n int) int {
	if index < 0 {
		return 0
	}
	if index > n {
		return n
	}
	return index
}
