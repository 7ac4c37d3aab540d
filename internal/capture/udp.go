package capture

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/VictorHGutierrez-cloud/salesagent1/internal/config"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/metrics"
	"github.com/VictorHGutierrez-cloud/salesagent1/internal/protocol"
)

// UDPSource receives PCM audio frames over UDP and delivers their samples
// to the capture stage. Frames arriving out of order are dropped; gaps in
// the sequence are counted as lost.
type UDPSource struct {
	config  *config.UDPConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	conn *net.UDPConn

	// Sequence tracking
	started bool
	lastSeq uint32

	// Statistics
	framesReceived  uint64
	framesDelivered uint64
	framesLost      uint64
	lateFrames      uint64
	parseErrors     uint64
	bytesReceived   uint64

	mu sync.RWMutex
}

// UDPSourceStats represents UDP source statistics
type UDPSourceStats struct {
	FramesReceived  uint64 `json:"frames_received"`
	FramesDelivered uint64 `json:"frames_delivered"`
	FramesLost      uint64 `json:"frames_lost"`
	LateFrames      uint64 `json:"late_frames"`
	ParseErrors     uint64 `json:"parse_errors"`
	BytesReceived   uint64 `json:"bytes_received"`
	LastSequence    uint32 `json:"last_sequence"`
}

// NewUDPSource creates a new UDP audio source
func NewUDPSource(cfg *config.UDPConfig, logger *slog.Logger, m *metrics.Metrics) *UDPSource {
	return &UDPSource{
		config:  cfg,
		logger:  logger,
		metrics: m,
	}
}

func (s *UDPSource) Name() string { return "udp" }

// Open binds the listening socket. A port that cannot be bound fails
// here, before any goroutine is started.
func (s *UDPSource) Open() error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}

	if err := conn.SetReadBuffer(s.config.BufferSize); err != nil {
		s.logger.Warn("Failed to set UDP read buffer size",
			slog.Int("buffer_size", s.config.BufferSize),
			slog.String("error", err.Error()),
		)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info("UDP audio source listening",
		slog.String("address", conn.LocalAddr().String()),
		slog.Int("buffer_size", s.config.BufferSize),
	)
	return nil
}

// Start receives audio frames and delivers decoded samples until the
// context is cancelled or the connection is closed.
func (s *UDPSource) Start(ctx context.Context, deliver func(block []float32)) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("UDP source not opened")
	}

	buffer := make([]byte, s.config.BufferSize)

	for {
		select {
		case <-ctx.Done():
			s.logStats("UDP audio source stopping")
			return ctx.Err()
		default:
		}

		// Read deadline lets us check for cancellation periodically
		if err := conn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
			s.logger.Error("Failed to set read deadline", slog.String("error", err.Error()))
			continue
		}

		n, remoteAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}

			select {
			case <-ctx.Done():
				s.logStats("UDP audio source stopping")
				return ctx.Err()
			default:
				s.logger.Error("Failed to read UDP frame", slog.String("error", err.Error()))
				continue
			}
		}

		s.handleDatagram(buffer[:n], remoteAddr, deliver)
	}
}

// handleDatagram parses one datagram and delivers its samples in order
func (s *UDPSource) handleDatagram(data []byte, remoteAddr *net.UDPAddr, deliver func(block []float32)) {
	s.mu.Lock()
	s.framesReceived++
	s.bytesReceived += uint64(len(data))
	s.mu.Unlock()
	s.metrics.RecordFrameReceived()

	frame, err := protocol.ParseFrame(data)
	if err != nil {
		s.mu.Lock()
		s.parseErrors++
		s.mu.Unlock()
		s.metrics.RecordFrameParseError()

		s.logger.Error("Failed to parse audio frame",
			slog.String("remote_addr", remoteAddr.String()),
			slog.Int("frame_size", len(data)),
			slog.String("error", err.Error()),
		)
		return
	}

	seq := frame.Header.Sequence

	s.mu.Lock()
	if s.started && seq <= s.lastSeq {
		s.lateFrames++
		s.mu.Unlock()

		s.logger.Debug("Dropping late audio frame",
			slog.Uint64("sequence", uint64(seq)),
			slog.Uint64("last_sequence", uint64(s.lastSeq)),
		)
		return
	}

	if s.started && seq > s.lastSeq+1 {
		lost := uint64(seq - s.lastSeq - 1)
		s.framesLost += lost
		s.mu.Unlock()
		s.metrics.RecordFramesLost(int(lost))

		s.logger.Warn("Sequence gap in audio frames",
			slog.Uint64("expected", uint64(s.lastSeq+1)),
			slog.Uint64("received", uint64(seq)),
			slog.Uint64("lost", lost),
		)
		s.mu.Lock()
	}

	s.started = true
	s.lastSeq = seq
	s.framesDelivered++
	s.mu.Unlock()

	deliver(frame.Samples)
}

// Stop closes the connection, unblocking a pending read
func (s *UDPSource) Stop() error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			return fmt.Errorf("failed to close UDP connection: %w", err)
		}
	}
	return nil
}

// GetStats returns current source statistics
func (s *UDPSource) GetStats() UDPSourceStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return UDPSourceStats{
		FramesReceived:  s.framesReceived,
		FramesDelivered: s.framesDelivered,
		FramesLost:      s.framesLost,
		LateFrames:      s.lateFrames,
		ParseErrors:     s.parseErrors,
		BytesReceived:   s.bytesReceived,
		LastSequence:    s.lastSeq,
	}
}

func (s *UDPSource) logStats(msg string) {
	stats := s.GetStats()
	s.logger.Info(msg,
		slog.Uint64("frames_received", stats.FramesReceived),
		slog.Uint64("frames_delivered", stats.FramesDelivered),
		slog.Uint64("frames_lost", stats.FramesLost),
		slog.Uint64("parse_errors", stats.ParseErrors),
	)
}
