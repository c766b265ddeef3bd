package buffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateTransitionOrder(t *testing.T) {
	tests := []struct {
		name         string
		timestamps   []int64
		transitionAt int // index of the packet that enters streaming, -1 for never
		wantDelay    int64
	}{
		{
			name:         "second packet changes timestamp",
			timestamps:   []int64{100, 120, 140},
			transitionAt: 1,
			wantDelay:    20,
		},
		{
			name:         "several packets share the first timestamp",
			timestamps:   []int64{100, 100, 100, 133, 166},
			transitionAt: 3,
			wantDelay:    33,
		},
		{
			name:         "first change goes backwards",
			timestamps:   []int64{200, 200, 180},
			transitionAt: 2,
			wantDelay:    20,
		},
		{
			name:         "no timestamp change",
			timestamps:   []int64{100, 100, 100},
			transitionAt: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, _, _ := newTestBuffer(t, windowConfig(1000))

			for i, ts := range tt.timestamps {
				require.NoError(t, buf.OnPacketReceived(packetAt(ts, uint16(i))))

				switch {
				case i == 0 && tt.transitionAt != 0:
					assert.Equal(t, StateConfiguring, buf.State(), "after packet %d", i)
				case tt.transitionAt < 0 || i < tt.transitionAt:
					assert.Equal(t, StateConfiguring, buf.State(), "after packet %d", i)
				default:
					assert.Equal(t, StateStreaming, buf.State(), "after packet %d", i)
				}
			}

			if tt.transitionAt < 0 {
				assert.Zero(t, buf.SendingDelay())
				select {
				case <-buf.Streaming():
					t.Fatal("streaming gate opened without a timestamp change")
				default:
				}
				return
			}

			assert.Equal(t, tt.wantDelay, buf.SendingDelay())
			select {
			case <-buf.Streaming():
			default:
				t.Fatal("streaming gate not opened")
			}
		})
	}
}

func TestInitialWindow(t *testing.T) {
	buf, _, clock := newTestBuffer(t, windowConfig(100))

	require.NoError(t, buf.OnPacketReceived(packetAt(5000, 1)))
	require.NoError(t, buf.OnPacketReceived(packetAt(5020, 2)))

	down, up := buf.Window()
	assert.Equal(t, int64(4900), down)
	assert.Equal(t, int64(4920), up)

	require.True(t, clock.AwaitWaits(1, testTimeout))
	assert.Equal(t, []time.Duration{20 * time.Millisecond}, clock.Waits())
}

func TestStreamingIsTerminal(t *testing.T) {
	buf, _, _ := newTestBuffer(t, windowConfig(0))

	require.NoError(t, buf.OnPacketReceived(packetAt(1000, 1)))
	require.NoError(t, buf.OnPacketReceived(packetAt(1040, 2)))
	require.Equal(t, StateStreaming, buf.State())

	// Later spacing changes are not re-learned.
	require.NoError(t, buf.OnPacketReceived(packetAt(1045, 3)))
	require.NoError(t, buf.OnPacketReceived(packetAt(1300, 4)))
	assert.Equal(t, StateStreaming, buf.State())
	assert.Equal(t, int64(40), buf.SendingDelay())
}

func TestStartingPoint(t *testing.T) {
	buf, _, clock := newTestBuffer(t, windowConfig(100))
	assert.True(t, buf.StartingPoint().IsZero())

	require.NoError(t, buf.OnPacketReceived(packetAt(2500, 1)))
	assert.Equal(t, clock.Now().Add(-2500*time.Millisecond), buf.StartingPoint())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "configuring", StateConfiguring.String())
	assert.Equal(t, "streaming", StateStreaming.String())
}
