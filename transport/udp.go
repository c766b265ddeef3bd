package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/opd-ai/rtpjitter/interfaces"
	"github.com/opd-ai/rtpjitter/limits"
)

// readTimeout bounds each blocking read so the receive loop notices Close.
const readTimeout = 100 * time.Millisecond

var (
	// ErrNilSink is returned when a source is created without a packet sink.
	ErrNilSink = errors.New("packet sink cannot be nil")

	// ErrNilPacket is returned when a sink is asked to send a nil packet.
	ErrNilPacket = errors.New("cannot send nil packet")

	// ErrUnsupportedVersion indicates a datagram whose RTP version is not 2.
	ErrUnsupportedVersion = errors.New("unsupported RTP version")
)

// SourceStats counts what a UDPSource did with the datagrams it read.
type SourceStats struct {
	DatagramsRead uint64
	ParseErrors   uint64
	SinkErrors    uint64
}

// UDPSource reads RTP datagrams from a UDP socket and hands each parsed
// packet to a sink, in arrival order, from a single goroutine.
type UDPSource struct {
	conn net.PacketConn
	sink interfaces.IPacketSink

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	datagrams   atomic.Uint64
	parseErrors atomic.Uint64
	sinkErrors  atomic.Uint64
}

// NewUDPSource listens on listenAddr and starts delivering packets to sink.
func NewUDPSource(listenAddr string, sink interfaces.IPacketSink) (*UDPSource, error) {
	if sink == nil {
		return nil, ErrNilSink
	}

	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &UDPSource{
		conn:   conn,
		sink:   sink,
		ctx:    ctx,
		cancel: cancel,
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewUDPSource",
		"local":    conn.LocalAddr().String(),
	}).Info("UDP packet source listening")

	s.wg.Add(1)
	go s.receiveLoop()

	return s, nil
}

// LocalAddr returns the address the source is listening on.
func (s *UDPSource) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Stats returns the source counters.
func (s *UDPSource) Stats() SourceStats {
	return SourceStats{
		DatagramsRead: s.datagrams.Load(),
		ParseErrors:   s.parseErrors.Load(),
		SinkErrors:    s.sinkErrors.Load(),
	}
}

// Close stops the receive loop and closes the socket.
func (s *UDPSource) Close() error {
	s.cancel()
	s.wg.Wait()
	return s.conn.Close()
}

func (s *UDPSource) receiveLoop() {
	defer s.wg.Done()

	// One spare byte so oversized datagrams are detected rather than truncated.
	buf := make([]byte, limits.MaxDatagramSize+1)
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
			s.processIncomingDatagram(buf)
		}
	}
}

func (s *UDPSource) processIncomingDatagram(buf []byte) {
	data, addr, err := s.readDatagram(buf)
	if err != nil {
		return
	}
	s.datagrams.Inc()

	packet, err := parseDatagram(data)
	if err != nil {
		s.parseErrors.Inc()
		logrus.WithFields(logrus.Fields{
			"function": "UDPSource.processIncomingDatagram",
			"remote":   addr.String(),
			"size":     len(data),
			"error":    err.Error(),
		}).Warn("Dropping unparseable datagram")
		return
	}

	if err := s.sink.OnPacketReceived(packet); err != nil {
		s.sinkErrors.Inc()
		logrus.WithFields(logrus.Fields{
			"function": "UDPSource.processIncomingDatagram",
			"sequence": packet.SequenceNumber,
			"error":    err.Error(),
		}).Warn("Packet sink rejected packet")
	}
}

func (s *UDPSource) readDatagram(buf []byte) ([]byte, net.Addr, error) {
	_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))

	n, addr, err := s.conn.ReadFrom(buf)
	if err != nil {
		var netErr net.Error
		if !(errors.As(err, &netErr) && netErr.Timeout()) && s.ctx.Err() == nil {
			logrus.WithFields(logrus.Fields{
				"function": "UDPSource.readDatagram",
				"error":    err.Error(),
			}).Debug("UDP read failed")
		}
		return nil, nil, err
	}
	return buf[:n], addr, nil
}

// parseDatagram validates the datagram size, decodes it and checks the RTP
// version. The payload is copied out of the shared read buffer.
func parseDatagram(data []byte) (*rtp.Packet, error) {
	if err := limits.ValidateDatagram(data); err != nil {
		return nil, err
	}

	raw := make([]byte, len(data))
	copy(raw, data)

	packet := &rtp.Packet{}
	if err := packet.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("failed to decode RTP packet: %w", err)
	}
	if packet.Version != 2 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, packet.Version)
	}
	return packet, nil
}

// UDPSink writes every packet it receives as one datagram to a fixed peer.
type UDPSink struct {
	conn net.Conn
	mu   sync.Mutex
}

// NewUDPSink connects a UDP socket to remoteAddr.
func NewUDPSink(remoteAddr string) (*UDPSink, error) {
	conn, err := net.Dial("udp", remoteAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", remoteAddr, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewUDPSink",
		"remote":   conn.RemoteAddr().String(),
	}).Info("UDP packet sink connected")

	return &UDPSink{conn: conn}, nil
}

// OnPacketReceived marshals packet and sends it.
func (s *UDPSink) OnPacketReceived(packet *rtp.Packet) error {
	if packet == nil {
		return ErrNilPacket
	}

	data, err := packet.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode RTP packet: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("failed to send RTP packet: %w", err)
	}
	return nil
}

// LocalAddr returns the local address of the sink's socket.
func (s *UDPSink) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Close closes the socket.
func (s *UDPSink) Close() error {
	return s.conn.Close()
}
