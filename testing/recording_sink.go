package testing

import (
	"sync"
	"time"

	"github.com/pion/rtp"
)

// DeliveryRecord represents a packet delivery event for testing verification
type DeliveryRecord struct {
	Timestamp uint32
	Sequence  uint16
	Packet    *rtp.Packet
	At        time.Time
	Error     error
}

// RecordingSink implements interfaces.IPacketSink and records every call.
type RecordingSink struct {
	mu          sync.RWMutex
	deliveryLog []DeliveryRecord
	fail        func(packet *rtp.Packet) error
	block       chan struct{}
}

// NewRecordingSink creates an empty recording sink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// SetFailure installs fn to decide per packet whether the sink rejects it.
// A nil fn accepts everything.
func (r *RecordingSink) SetFailure(fn func(packet *rtp.Packet) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = fn
}

// Block makes OnPacketReceived wait until the returned release function is called.
func (r *RecordingSink) Block() (release func()) {
	ch := make(chan struct{})
	r.mu.Lock()
	r.block = ch
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.block = nil
			r.mu.Unlock()
			close(ch)
		})
	}
}

// OnPacketReceived records the packet and returns the injected failure, if any.
func (r *RecordingSink) OnPacketReceived(packet *rtp.Packet) error {
	r.mu.RLock()
	block := r.block
	fail := r.fail
	r.mu.RUnlock()

	if block != nil {
		<-block
	}

	var err error
	if fail != nil {
		err = fail(packet)
	}

	r.mu.Lock()
	r.deliveryLog = append(r.deliveryLog, DeliveryRecord{
		Timestamp: packet.Timestamp,
		Sequence:  packet.SequenceNumber,
		Packet:    packet,
		At:        time.Now(),
		Error:     err,
	})
	r.mu.Unlock()

	return err
}

// GetDeliveryLog returns a copy of every call, accepted or not.
func (r *RecordingSink) GetDeliveryLog() []DeliveryRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]DeliveryRecord, len(r.deliveryLog))
	copy(out, r.deliveryLog)
	return out
}

// Packets returns the packets the sink accepted, in delivery order.
func (r *RecordingSink) Packets() []*rtp.Packet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*rtp.Packet, 0, len(r.deliveryLog))
	for _, rec := range r.deliveryLog {
		if rec.Error == nil {
			out = append(out, rec.Packet)
		}
	}
	return out
}

// Count returns the number of calls made to the sink.
func (r *RecordingSink) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.deliveryLog)
}

// ClearDeliveryLog forgets all recorded deliveries.
func (r *RecordingSink) ClearDeliveryLog() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveryLog = nil
}

// WaitForCount polls until at least n calls were recorded or timeout elapses.
func (r *RecordingSink) WaitForCount(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if r.Count() >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}
