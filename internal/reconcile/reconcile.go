// Package reconcile merges REST snapshots, push events and local patches into
// an ordered, filtered list keyed by entity id.
//
// Every function is pure: it takes a State and returns the next one without
// touching the input. Events carry no version, so the last applied update wins.
package reconcile

import "sort"

type Keyed interface {
	Key() int64
}

// Predicate decides membership in the visible set. A nil predicate admits everything.
type Predicate[T any] func(T) bool

func (p Predicate[T]) admit(item T) bool {
	return p == nil || p(item)
}

// Ordering is the declared order of a view.
type Ordering[T Keyed] struct {
	name   string
	less   func(a, b T) bool
	resort bool
}

func (o Ordering[T]) String() string {
	if o.name == "" {
		return "insertion"
	}
	return o.name
}

// ByID keeps a stable work queue in ascending id order. Updates stay in place.
func ByID[T Keyed]() Ordering[T] {
	return Ordering[T]{
		name: "id",
		less: func(a, b T) bool { return a.Key() < b.Key() },
	}
}

// ByTime orders chronologically on the timestamp returned by ts, ties broken
// by id. Updates re-sort the whole list since they may move the timestamp.
func ByTime[T Keyed](ts func(T) string, newestFirst bool) Ordering[T] {
	name := "time"
	if newestFirst {
		name = "time desc"
	}
	return Ordering[T]{
		name:   name,
		resort: true,
		less: func(a, b T) bool {
			ta, tb := ts(a), ts(b)
			if ta == tb {
				if newestFirst {
					return a.Key() > b.Key()
				}
				return a.Key() < b.Key()
			}
			if newestFirst {
				return ta > tb
			}
			return ta < tb
		},
	}
}

// State is the reconciled content of one view. Deleted holds ids removed by a
// confirmed delete event; updates for them are ignored until a create arrives.
type State[T Keyed] struct {
	Items   []T
	Deleted map[int64]struct{}
}

func (s State[T]) Len() int { return len(s.Items) }

func (s State[T]) IndexOf(id int64) int {
	for i, item := range s.Items {
		if item.Key() == id {
			return i
		}
	}
	return -1
}

func (s State[T]) Get(id int64) (T, bool) {
	if i := s.IndexOf(id); i >= 0 {
		return s.Items[i], true
	}
	var zero T
	return zero, false
}

func (s State[T]) IsDeleted(id int64) bool {
	_, ok := s.Deleted[id]
	return ok
}

// Seed replaces the items with a fresh snapshot. Duplicate ids keep the last
// row, rows failing match or carrying a tombstoned id are dropped.
func Seed[T Keyed](s State[T], items []T, match Predicate[T], ord Ordering[T]) State[T] {
	out := State[T]{Items: make([]T, 0, len(items)), Deleted: s.Deleted}
	pos := make(map[int64]int, len(items))
	for _, item := range items {
		if !match.admit(item) || s.IsDeleted(item.Key()) {
			continue
		}
		if i, ok := pos[item.Key()]; ok {
			out.Items[i] = item
			continue
		}
		pos[item.Key()] = len(out.Items)
		out.Items = append(out.Items, item)
	}
	if ord.less != nil {
		sort.SliceStable(out.Items, func(i, j int) bool { return ord.less(out.Items[i], out.Items[j]) })
	}
	return out
}

// Refilter re-evaluates every item against a new predicate. It only removes;
// entities that now match must come from a fresh fetch.
func Refilter[T Keyed](s State[T], match Predicate[T]) State[T] {
	out := State[T]{Items: make([]T, 0, len(s.Items)), Deleted: s.Deleted}
	for _, item := range s.Items {
		if match.admit(item) {
			out.Items = append(out.Items, item)
		}
	}
	return out
}

// ApplyCreated inserts item at its ordered position when it matches. An id
// that is already present is left untouched. A create clears any tombstone.
func ApplyCreated[T Keyed](s State[T], item T, match Predicate[T], ord Ordering[T]) State[T] {
	id := item.Key()
	if s.IsDeleted(id) {
		s = State[T]{Items: s.Items, Deleted: without(s.Deleted, id)}
	}
	if s.IndexOf(id) >= 0 || !match.admit(item) {
		return s
	}
	return insert(s, item, ord)
}

// ApplyUpdated replaces, removes or inserts item depending on whether it is
// tracked and whether it still matches.
func ApplyUpdated[T Keyed](s State[T], item T, match Predicate[T], ord Ordering[T]) State[T] {
	id := item.Key()
	if s.IsDeleted(id) {
		return s
	}
	i := s.IndexOf(id)
	ok := match.admit(item)
	switch {
	case i >= 0 && ok:
		items := append([]T(nil), s.Items...)
		items[i] = item
		if ord.resort && ord.less != nil {
			sort.SliceStable(items, func(a, b int) bool { return ord.less(items[a], items[b]) })
		}
		return State[T]{Items: items, Deleted: s.Deleted}
	case i >= 0:
		return removeAt(s, i)
	case ok:
		return insert(s, item, ord)
	default:
		return s
	}
}

// ApplyDeleted removes id and records a tombstone for it.
func ApplyDeleted[T Keyed](s State[T], id int64) State[T] {
	out := s
	if i := s.IndexOf(id); i >= 0 {
		out = removeAt(s, i)
	}
	deleted := make(map[int64]struct{}, len(s.Deleted)+1)
	for k := range s.Deleted {
		deleted[k] = struct{}{}
	}
	deleted[id] = struct{}{}
	out.Deleted = deleted
	return out
}

// Remove drops id without a tombstone. Used for local intents the server has
// not confirmed yet.
func Remove[T Keyed](s State[T], id int64) State[T] {
	if i := s.IndexOf(id); i >= 0 {
		return removeAt(s, i)
	}
	return s
}

// Patch applies fn to the tracked item with id. The order is preserved.
func Patch[T Keyed](s State[T], id int64, fn func(T) T) (State[T], bool) {
	i := s.IndexOf(id)
	if i < 0 {
		return s, false
	}
	items := append([]T(nil), s.Items...)
	items[i] = fn(items[i])
	return State[T]{Items: items, Deleted: s.Deleted}, true
}

func insert[T Keyed](s State[T], item T, ord Ordering[T]) State[T] {
	idx := len(s.Items)
	if ord.less != nil {
		idx = sort.Search(len(s.Items), func(i int) bool { return ord.less(item, s.Items[i]) })
	}
	items := make([]T, 0, len(s.Items)+1)
	items = append(items, s.Items[:idx]...)
	items = append(items, item)
	items = append(items, s.Items[idx:]...)
	return State[T]{Items: items, Deleted: s.Deleted}
}

func removeAt[T Keyed](s State[T], i int) State[T] {
	items := make([]T, 0, len(s.Items)-1)
	items = append(items, s.Items[:i]...)
	items = append(items, s.Items[i+1:]...)
	return State[T]{Items: items, Deleted: s.Deleted}
}

func without(set map[int64]struct{}, id int64) map[int64]struct{} {
	out := make(map[int64]struct{}, len(set))
	for k := range set {
		if k != id {
			out[k] = struct{}{}
		}
	}
	return out
}
