package scheduler

import "time"

// item is a (target key, scheduled time) pair, the unit the priority
// queue orders on. It holds no other state — PollState is the source of
// truth; the heap just tells the tick loop which key to look at next.
type item struct {
	key     string
	nextRun time.Time
}

// priorityQueue is a min-heap over item.nextRun, grounded on the
// poller/scheduler split between a small heap.Interface and an external
// state map rather than re-sorting a slice every tick.
type priorityQueue []*item

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].nextRun.Before(pq[j].nextRun)
}

func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *priorityQueue) Push(x any) {
	*pq = append(*pq, x.(*item))
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return it
}
