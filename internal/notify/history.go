package notify

import "sync"

// History keeps the last N toasts in a ring.
type History struct {
	mu   sync.Mutex
	buf  []Toast
	next int
	full bool
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = 100
	}
	return &History{buf: make([]Toast, size)}
}

func (h *History) Add(t Toast) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf[h.next] = t
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
}

// List returns the held toasts, newest first.
func (h *History) List() []Toast {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := h.next
	if h.full {
		n = len(h.buf)
	}
	out := make([]Toast, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, h.buf[(h.next-i+len(h.buf))%len(h.buf)])
	}
	return out
}
