// Package testing provides simulation infrastructure for deterministic testing
// of jitter buffers without a network.
//
// # Overview
//
// Three pieces cover both ends of a buffer and its clock:
//
//   - StreamSimulator: generates an RTP stream of frames and perturbs its
//     arrival order (reordering, duplication, loss) from a fixed seed, so the
//     same configuration always yields the same arrival sequence.
//   - RecordingSink: an interfaces.IPacketSink that records every delivery,
//     with optional failure injection.
//   - ManualClock: a TimeProvider whose waits are released by the test, so
//     delivery cycles can be stepped one at a time.
//
// # Usage
//
//	sim := testing.NewStreamSimulator(testing.StreamConfig{
//	    Frames:          50,
//	    PacketsPerFrame: 3,
//	    FrameSpacing:    90 * 20,
//	    ReorderDepth:    4,
//	    Seed:            1,
//	})
//	sink := testing.NewRecordingSink()
//	clock := testing.NewManualClock(time.Unix(0, 0))
//
//	buf, _ := buffer.New(sink, config.Default(), buffer.WithTimeProvider(clock))
//	_ = sim.Feed(buf)
//
//	clock.AwaitWaits(1, time.Second) // first delivery cycle done
//	clock.Fire()                    // release the wait, next cycle runs
//
// The package is conventionally imported as testsim to avoid clashing with the
// standard library testing package.
//
// # Thread Safety
//
// RecordingSink and ManualClock are safe for concurrent use from multiple
// goroutines. StreamSimulator is not; use one per goroutine.
package testing
