package buffer

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"
)

// State is the coordinator's position in its configuration lifecycle.
type State string

const (
	// StateIdle is the initial state: no packet received yet.
	StateIdle State = "idle"
	// StateConfiguring waits for the first timestamp change to learn the frame spacing.
	StateConfiguring State = "configuring"
	// StateStreaming is terminal: the window is learned and delivery runs.
	StateStreaming State = "streaming"
)

// State machine events.
const (
	eventFirstPacket    = "first_packet"
	eventSpacingLearned = "spacing_learned"
)

func (s State) String() string {
	return string(s)
}

// newStateMachine wires the three-state lifecycle. onStreaming runs once, when
// the machine enters StateStreaming; there is no event leading back out of it.
func newStateMachine(logger *logrus.Entry, onStreaming func()) *fsm.FSM {
	return fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: eventFirstPacket, Src: []string{string(StateIdle)}, Dst: string(StateConfiguring)},
			{Name: eventSpacingLearned, Src: []string{string(StateConfiguring)}, Dst: string(StateStreaming)},
		},
		fsm.Callbacks{
			"enter_" + string(StateStreaming): func(_ context.Context, e *fsm.Event) {
				logger.WithFields(logrus.Fields{
					"from":  e.Src,
					"event": e.Event,
				}).Debug("Entering streaming state")
				onStreaming()
			},
		},
	)
}

// advanceState drives the lifecycle for one packet with converted timestamp ts.
// Callers hold b.stateMu.
func (b *Buffer) advanceState(ts int64) error {
	switch State(b.fsm.Current()) {
	case StateIdle:
		b.lastTimestamp = ts
		b.startingPoint = b.timeProvider.Now().Add(-millis(ts))
		return b.fsm.Event(context.Background(), eventFirstPacket)

	case StateConfiguring:
		if ts == b.lastTimestamp {
			return nil
		}

		// The first timestamp change is taken as the stream's frame spacing, even
		// though the first packet seen is not necessarily the first one sent.
		delay := ts - b.lastTimestamp
		if delay < 0 {
			delay = -delay
		}
		down := b.lastTimestamp - b.config.FramesDelayWindow

		b.mu.Lock()
		b.sendingDelay.Store(delay)
		b.downBound.Store(down)
		b.upBound.Store(down + delay)
		b.mu.Unlock()

		b.metrics.SendingDelay.Set(float64(delay))
		b.debug("Buffer.advanceState", "Sending delay learned", logrus.Fields{
			"sending_delay": delay,
			"down_bound":    down,
			"up_bound":      down + delay,
		})

		return b.fsm.Event(context.Background(), eventSpacingLearned)
	}

	return nil
}
