package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-tuner/logging"
	"github.com/RyanBlaney/sonido-tuner/tuner"
)

// opener produces the PCM16 mono stream for a requested format and reports the format delivered
type opener func(ctx context.Context, req tuner.Format) (io.ReadCloser, tuner.Format, error)

// StreamSource delivers PCM16 mono bytes read from a stream in fixed-size chunks
type StreamSource struct {
	open         opener
	periodFrames int
	realtime     bool
	logger       logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewReaderSource streams raw little-endian PCM16 mono bytes recorded at sampleRate
func NewReaderSource(r io.Reader, sampleRate int, cfg Config, logger logging.Logger) *StreamSource {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &StreamSource{
		open: func(context.Context, tuner.Format) (io.ReadCloser, tuner.Format, error) {
			return io.NopCloser(r), tuner.Format{SampleRate: sampleRate}, nil
		},
		periodFrames: max(cfg.PeriodFrames, 1),
		realtime:     cfg.Realtime,
		logger:       logger.WithFields(logging.Fields{"component": "capture", "backend": "reader"}),
	}
}

// Start opens the stream and begins delivering chunks from a new goroutine
func (s *StreamSource) Start(req tuner.Format, onData func([]byte)) (tuner.Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return tuner.Format{}, errors.New("stream already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	rc, got, err := s.open(ctx, req)
	if err != nil {
		cancel()
		return tuner.Format{}, err
	}
	if got.SampleRate <= 0 {
		got = req
	}

	s.cancel = cancel
	s.done = make(chan struct{})
	s.err = nil

	go s.run(ctx, rc, got, onData, s.done)

	return got, nil
}

func (s *StreamSource) run(ctx context.Context, rc io.ReadCloser, format tuner.Format, onData func([]byte), done chan struct{}) {
	defer close(done)

	var pace time.Duration
	if s.realtime && format.SampleRate > 0 {
		pace = time.Duration(float64(s.periodFrames) / float64(format.SampleRate) * float64(time.Second))
	}

	err := pump(ctx, rc, 2*s.periodFrames, pace, onData)
	if cerr := rc.Close(); err == nil && ctx.Err() == nil {
		err = cerr
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if err != nil {
		s.logger.Error(err, "Stream ended with error")
	} else {
		s.logger.Debug("Stream ended")
	}

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Stop cancels delivery and waits for the reader goroutine to finish
func (s *StreamSource) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the current stream is exhausted or stopped; nil before Start
func (s *StreamSource) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.done
}

// Err returns the error that ended the last stream, if any
func (s *StreamSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// MaxSampleRate is unknown for streams; the decoder resamples to any rate
func (s *StreamSource) MaxSampleRate() int {
	return 0
}

// pump reads chunkBytes at a time and hands each chunk to onData until EOF or cancellation.
// A positive pace waits that long between chunks.
func pump(ctx context.Context, r io.Reader, chunkBytes int, pace time.Duration, onData func([]byte)) error {
	buf := make([]byte, chunkBytes)

	var tick <-chan time.Time
	if pace > 0 {
		ticker := time.NewTicker(pace)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		n, err := io.ReadFull(r, buf)
		if n > 0 {
			onData(buf[:n])
		}
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		case err != nil:
			return fmt.Errorf("read stream: %w", err)
		}
	}
}
