package interfaces

import (
	"errors"
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
)

func TestPacketSinkFunc(t *testing.T) {
	var got []*rtp.Packet
	sink := PacketSinkFunc(func(packet *rtp.Packet) error {
		got = append(got, packet)
		return nil
	})

	var _ IPacketSink = sink

	p := &rtp.Packet{Header: rtp.Header{Version: 2, SequenceNumber: 7}}
	assert.NoError(t, sink.OnPacketReceived(p))
	assert.Equal(t, []*rtp.Packet{p}, got)
}

func TestPacketSinkFuncPropagatesError(t *testing.T) {
	wantErr := errors.New("sink offline")
	sink := PacketSinkFunc(func(*rtp.Packet) error { return wantErr })

	assert.ErrorIs(t, sink.OnPacketReceived(&rtp.Packet{}), wantErr)
}
