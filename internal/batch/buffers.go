package batch

import "sync"

const copyBufferSize = 256 << 10

// bufferPool holds copy buffers for one batch. The governor drains it
// between batches so nothing the batch allocated outlives it.
type bufferPool struct {
	mu   sync.Mutex
	free [][]byte
	out  int
}

func newBufferPool() *bufferPool {
	return &bufferPool{}
}

func (p *bufferPool) get() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out++
	if n := len(p.free); n > 0 {
		b := p.free[n-1]
		p.free = p.free[:n-1]
		return b
	}
	return make([]byte, copyBufferSize)
}

func (p *bufferPool) put(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out--
	p.free = append(p.free, b)
}

// Drain drops every pooled buffer and returns how many were released.
func (p *bufferPool) Drain() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.free)
	p.free = nil
	return n
}

// Outstanding returns how many buffers are checked out.
func (p *bufferPool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out
}
