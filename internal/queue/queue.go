package queue

import (
	"container/heap"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Queue holds pending requests in priority order. It is not safe for
// concurrent use.
type Queue struct {
	items   requestHeap
	nextSeq uint64
	now     func() time.Time
}

func New() *Queue {
	return &Queue{
		items:   requestHeap{index: make(map[uuid.UUID]int)},
		nextSeq: 1,
		now:     time.Now,
	}
}

// Submit validates the request, gives it an id when it has none and the
// next sequence number, and inserts it. The stored copy is returned.
func (q *Queue) Submit(r Request) (Request, error) {
	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if _, dup := q.items.index[r.ID]; dup {
		return Request{}, fmt.Errorf("%w: request %s is already queued", ErrInvalidRequest, r.ID)
	}

	r.Seq = q.nextSeq
	q.nextSeq++
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = q.now()
	}

	heap.Push(&q.items, r)
	return r, nil
}

func (q *Queue) Peek() (Request, error) {
	if q.items.Len() == 0 {
		return Request{}, ErrEmptyQueue
	}
	return q.items.list[0], nil
}

func (q *Queue) Pop() (Request, error) {
	if q.items.Len() == 0 {
		return Request{}, ErrEmptyQueue
	}
	return heap.Pop(&q.items).(Request), nil
}

// Remove withdraws a pending request before it is processed.
func (q *Queue) Remove(id uuid.UUID) (Request, error) {
	i, ok := q.items.index[id]
	if !ok {
		return Request{}, fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	return heap.Remove(&q.items, i).(Request), nil
}

func (q *Queue) Len() int {
	return q.items.Len()
}

// Pending returns the queued requests in the order Pop would return them.
func (q *Queue) Pending() []Request {
	out := slices.Clone(q.items.list)
	slices.SortFunc(out, func(a, b Request) int {
		if Less(a, b) {
			return -1
		}
		if Less(b, a) {
			return 1
		}
		return 0
	})
	return out
}

// Restore re-inserts previously queued requests keeping their sequence
// numbers, and moves the counter past the largest one so numbers are never
// handed out twice. Nothing is inserted unless every request is valid and
// ids and sequence numbers are unique across the queue.
func (q *Queue) Restore(reqs []Request) error {
	seqs := make(map[uint64]uuid.UUID, len(q.items.list)+len(reqs))
	for _, r := range q.items.list {
		seqs[r.Seq] = r.ID
	}
	ids := make(map[uuid.UUID]struct{}, len(reqs))

	for _, r := range reqs {
		if err := r.Validate(); err != nil {
			return err
		}
		if r.ID == uuid.Nil || r.Seq == 0 {
			return fmt.Errorf("%w: restored request needs an id and a sequence number", ErrInvalidRequest)
		}
		_, queued := q.items.index[r.ID]
		_, seen := ids[r.ID]
		if queued || seen {
			return fmt.Errorf("%w: request %s is already queued", ErrInvalidRequest, r.ID)
		}
		if other, taken := seqs[r.Seq]; taken {
			return fmt.Errorf("%w: requests %s and %s share sequence number %d", ErrInvalidRequest, other, r.ID, r.Seq)
		}
		ids[r.ID] = struct{}{}
		seqs[r.Seq] = r.ID
	}

	for _, r := range reqs {
		heap.Push(&q.items, r)
		if r.Seq >= q.nextSeq {
			q.nextSeq = r.Seq + 1
		}
	}
	return nil
}

// NextSeq is the sequence number the next submission will receive.
func (q *Queue) NextSeq() uint64 {
	return q.nextSeq
}

// requestHeap implements heap.Interface and tracks each request's position
// so Remove is O(log n).
type requestHeap struct {
	list  []Request
	index map[uuid.UUID]int
}

func (h requestHeap) Len() int           { return len(h.list) }
func (h requestHeap) Less(i, j int) bool { return Less(h.list[i], h.list[j]) }

func (h requestHeap) Swap(i, j int) {
	h.list[i], h.list[j] = h.list[j], h.list[i]
	h.index[h.list[i].ID] = i
	h.index[h.list[j].ID] = j
}

func (h *requestHeap) Push(x any) {
	r := x.(Request)
	h.index[r.ID] = len(h.list)
	h.list = append(h.list, r)
}

func (h *requestHeap) Pop() any {
	n := len(h.list)
	r := h.list[n-1]
	h.list = h.list[:n-1]
	delete(h.index, r.ID)
	return r
}
