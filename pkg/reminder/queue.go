package reminder

import "container/heap"

type entry struct {
	reminder Reminder
	index    int
}

// entryQueue is a min-heap of armed reminders ordered by due time.
type entryQueue []*entry

var _ heap.Interface = (*entryQueue)(nil)

func (q entryQueue) Len() int { return len(q) }

func (q entryQueue) Less(i, j int) bool {
	return q[i].reminder.DueTime.Before(q[j].reminder.DueTime)
}

func (q entryQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *entryQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *entryQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}
