// Package history keeps the bounded record of cheapest-price observations for an alert.
package history

import "github.com/ogulcanaydogan/fare-guardian/pkg/model"

// DefaultCapacity is the number of observations kept per alert.
const DefaultCapacity = 30

// PriceHistory is a fixed-capacity ring buffer of price points.
// Pushing onto a full buffer evicts the oldest point.
type PriceHistory struct {
	points []model.PricePoint
	head   int // index of the oldest point
	size   int
}

// New creates an empty history. Non-positive capacities fall back to DefaultCapacity.
func New(capacity int) *PriceHistory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &PriceHistory{points: make([]model.PricePoint, capacity)}
}

// FromPoints builds a history from stored points, oldest first.
// Only the newest capacity points survive.
func FromPoints(capacity int, points []model.PricePoint) *PriceHistory {
	h := New(capacity)
	for _, p := range points {
		h.Push(p)
	}
	return h
}

// Push appends a point, evicting the oldest one when full.
func (h *PriceHistory) Push(p model.PricePoint) {
	c := len(h.points)
	if h.size < c {
		h.points[(h.head+h.size)%c] = p
		h.size++
		return
	}
	h.points[h.head] = p
	h.head = (h.head + 1) % c
}

// Len returns the number of stored points.
func (h *PriceHistory) Len() int { return h.size }

// Cap returns the maximum number of stored points.
func (h *PriceHistory) Cap() int { return len(h.points) }

// Points returns a copy of the stored points in chronological order.
func (h *PriceHistory) Points() []model.PricePoint {
	out := make([]model.PricePoint, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.points[(h.head+i)%len(h.points)]
	}
	return out
}

// Latest returns the most recent point, if any.
func (h *PriceHistory) Latest() (model.PricePoint, bool) {
	if h.size == 0 {
		return model.PricePoint{}, false
	}
	return h.points[(h.head+h.size-1)%len(h.points)], true
}

// Lowest returns the cheapest point seen in the window, if any.
func (h *PriceHistory) Lowest() (model.PricePoint, bool) {
	if h.size == 0 {
		return model.PricePoint{}, false
	}
	best := h.points[h.head]
	for i := 1; i < h.size; i++ {
		p := h.points[(h.head+i)%len(h.points)]
		if p.Price.LessThan(best.Price) {
			best = p
		}
	}
	return best, true
}
