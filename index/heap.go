package index

// Match is a single search hit: the stored position and its squared L2 distance
type Match struct {
	Position int
	Distance float32
}

// worse reports whether a ranks after b: larger distance, or equal distance at a later position.
func worse(a, b Match) bool {
	if a.Distance != b.Distance {
		return a.Distance > b.Distance
	}
	return a.Position > b.Position
}

// maxHeap keeps the k best matches seen so far with the worst one at the root.
type maxHeap []Match

func (h *maxHeap) Len() int { return len(*h) }

func (h *maxHeap) Push(m Match) {
	*h = append(*h, m)
	h.up(len(*h) - 1)
}

// Replace swaps the root (current worst) for m and restores the heap.
func (h *maxHeap) Replace(m Match) {
	(*h)[0] = m
	h.down(0, len(*h))
}

// Pop removes and returns the current worst match.
func (h *maxHeap) Pop() Match {
	old := *h
	n := len(old) - 1
	top := old[0]
	old[0] = old[n]
	*h = old[:n]
	if n > 0 {
		h.down(0, n)
	}
	return top
}

func (h *maxHeap) up(j int) {
	for j > 0 {
		i := (j - 1) / 2
		if !worse((*h)[j], (*h)[i]) {
			break
		}
		(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
		j = i
	}
}

func (h *maxHeap) down(i0, n int) {
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && worse((*h)[j2], (*h)[j1]) {
			j = j2
		}
		if !worse((*h)[j], (*h)[i]) {
			break
		}
		(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
		i = j
	}
}
