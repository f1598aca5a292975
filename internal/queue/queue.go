// Package queue provides the distance-ordered heap used by graph traversal.
package queue

import "container/heap"

// Compile time check to ensure PriorityQueue satisfies the heap interface.
var _ heap.Interface = (*PriorityQueue)(nil)

// Item is a graph node paired with its distance to the current query.
type Item struct {
	Node     uint32  // Node is the graph position of the item.
	Distance float32 // Distance is the priority of the item in the queue.
}

// PriorityQueue implements heap.Interface over Items.
//
// With Order == false the queue is a min-heap (nearest on top), with Order == true a
// max-heap (farthest on top).
type PriorityQueue struct {
	Order bool
	Items []Item
}

// NewMin returns an empty min-heap with room for capacity items.
func NewMin(capacity int) *PriorityQueue {
	return &PriorityQueue{Items: make([]Item, 0, capacity)}
}

// NewMax returns an empty max-heap with room for capacity items.
func NewMax(capacity int) *PriorityQueue {
	return &PriorityQueue{Order: true, Items: make([]Item, 0, capacity)}
}

// Len returns the number of elements in the priority queue.
func (pq *PriorityQueue) Len() int { return len(pq.Items) }

// Less reports whether the element with index i should sort before the element with index j.
func (pq *PriorityQueue) Less(i, j int) bool {
	if pq.Order {
		return pq.Items[i].Distance > pq.Items[j].Distance
	}

	return pq.Items[i].Distance < pq.Items[j].Distance
}

// Swap swaps the elements with indexes i and j.
func (pq *PriorityQueue) Swap(i, j int) {
	pq.Items[i], pq.Items[j] = pq.Items[j], pq.Items[i]
}

// Push is part of heap.Interface; use PushItem.
func (pq *PriorityQueue) Push(x any) {
	pq.Items = append(pq.Items, x.(Item))
}

// Pop is part of heap.Interface; use PopItem.
func (pq *PriorityQueue) Pop() any {
	old := pq.Items
	n := len(old)
	item := old[n-1]
	pq.Items = old[:n-1]

	return item
}

// PushItem adds an item, keeping the heap invariant.
func (pq *PriorityQueue) PushItem(item Item) {
	heap.Push(pq, item)
}

// PopItem removes and returns the top item.
func (pq *PriorityQueue) PopItem() Item {
	return heap.Pop(pq).(Item)
}

// Top returns the top item without removing it. The queue must not be empty.
func (pq *PriorityQueue) Top() Item {
	return pq.Items[0]
}

// Reset empties the queue, keeping its capacity.
func (pq *PriorityQueue) Reset() {
	pq.Items = pq.Items[:0]
}
