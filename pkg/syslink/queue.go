package syslink

import "sync/atomic"

// QueueCapacity is the number of bytes the receive queue holds.
const QueueCapacity = 64

// Queue is a bounded single-producer/single-consumer byte queue.
// The receive side (the serial interrupt on hardware, a reader goroutine
// here) is the only caller of Push, the main loop the only caller of
// TryReadByte. When the queue is full the byte is dropped and counted;
// the sender is not told.
type Queue struct {
	overflows uint64
	head      uint32
	tail      uint32
	buf       [QueueCapacity]byte
	readyCh   chan struct{}
	spaceCh   chan struct{}
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{
		readyCh: make(chan struct{}, 1),
		spaceCh: make(chan struct{}, 1),
	}
}

// Push appends a byte. It returns false if the queue is full and the byte
// was dropped.
func (q *Queue) Push(b byte) bool {
	tail := atomic.LoadUint32(&q.tail)
	if tail-atomic.LoadUint32(&q.head) >= QueueCapacity {
		atomic.AddUint64(&q.overflows, 1)
		return false
	}
	q.buf[tail%QueueCapacity] = b
	atomic.StoreUint32(&q.tail, tail+1)
	select {
	case q.readyCh <- struct{}{}:
	default:
	}
	return true
}

// TryReadByte implements ByteSource.
func (q *Queue) TryReadByte() (byte, bool) {
	head := atomic.LoadUint32(&q.head)
	if head == atomic.LoadUint32(&q.tail) {
		return 0, false
	}
	b := q.buf[head%QueueCapacity]
	atomic.StoreUint32(&q.head, head+1)
	select {
	case q.spaceCh <- struct{}{}:
	default:
	}
	return b, true
}

// Len returns the number of queued bytes.
func (q *Queue) Len() int {
	return int(atomic.LoadUint32(&q.tail) - atomic.LoadUint32(&q.head))
}

// Overflows returns the number of bytes dropped because the queue was full.
func (q *Queue) Overflows() uint64 {
	return atomic.LoadUint64(&q.overflows)
}

// Ready is signaled after Push stores a byte. A single signal may stand for
// several bytes, so the consumer drains with TryReadByte until empty.
func (q *Queue) Ready() <-chan struct{} {
	return q.readyCh
}

// Space is signaled after TryReadByte frees a slot. A producer with flow
// control waits on it instead of dropping bytes.
func (q *Queue) Space() <-chan struct{} {
	return q.spaceCh
}
