package telemetry

import "log"

// queuedMsg stores a serialized message waiting for the broker connection
// to come back.
type queuedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// offlineQueue is a fixed-capacity FIFO holding messages published while
// the broker is unreachable. When full, the oldest message is dropped.
// Not safe for concurrent use; the owning publisher synchronizes.
type offlineQueue struct {
	buf      []queuedMsg
	capacity int
	head     int // next write position
	count    int
	dropped  int // messages lost since the last drain
}

func newOfflineQueue(capacity int) *offlineQueue {
	return &offlineQueue{
		buf:      make([]queuedMsg, capacity),
		capacity: capacity,
	}
}

func (q *offlineQueue) push(msg queuedMsg) {
	if q.count == q.capacity {
		if q.dropped == 0 {
			log.Printf("telemetry: offline queue full (%d messages), dropping oldest", q.capacity)
		}
		q.dropped++
		// Overwrite oldest: head already points at it.
		q.buf[q.head] = msg
		q.head = (q.head + 1) % q.capacity
		return
	}
	q.buf[q.head] = msg
	q.head = (q.head + 1) % q.capacity
	q.count++
}

// drain returns all queued messages oldest-first and resets the queue.
func (q *offlineQueue) drain() []queuedMsg {
	if q.count == 0 {
		return nil
	}

	out := make([]queuedMsg, q.count)
	start := (q.head - q.count + q.capacity) % q.capacity
	for i := 0; i < q.count; i++ {
		out[i] = q.buf[(start+i)%q.capacity]
	}

	if q.dropped > 0 {
		log.Printf("telemetry: %d queued messages were lost while offline", q.dropped)
	}
	q.count = 0
	q.head = 0
	q.dropped = 0
	return out
}

func (q *offlineQueue) len() int {
	return q.count
}
