package tuner

import (
	"fmt"
	"sync"

	"github.com/RyanBlaney/sonido-tuner/algorithms/common"
	"github.com/RyanBlaney/sonido-tuner/algorithms/temporal"
	"github.com/RyanBlaney/sonido-tuner/algorithms/tonal"
	"github.com/RyanBlaney/sonido-tuner/logging"
)

// Engine owns the configuration and every piece of transient detection state.
// PCM bytes arrive through Accept; results leave through the Handler.
type Engine struct {
	ctl        sync.Mutex // serializes Start, Stop, Reload and setters
	acceptMu   sync.Mutex // serializes Accept so events leave in processing order
	mu         sync.Mutex // guards pipeline and published state
	dispatchMu sync.Mutex // one handler call at a time

	cfg           Config
	maxSampleRate int
	running       bool

	frames    *common.FrameBuilder
	meter     *temporal.LevelMeter
	detector  tonal.Detector
	stability *tonal.StabilityFilter
	mapper    *tonal.NoteMapper

	level   float64
	peaks   []PublishedPeak
	note    tonal.NoteResult
	hasNote bool

	source  Source
	handler Handler
	logger  logging.Logger
}

// Option configures an Engine at construction
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHandler sets the event handler
func WithHandler(h Handler) Option {
	return func(e *Engine) {
		e.handler = h
	}
}

// WithSource attaches the capture source
func WithSource(src Source) Option {
	return func(e *Engine) {
		e.source = src
	}
}

// Snapshot is a consistent view of every published value
type Snapshot struct {
	Config  Config
	Running bool
	Level   float64
	Peaks   []PublishedPeak
	Note    tonal.NoteResult
	HasNote bool
}

// New builds an engine from cfg. Capture does not start until Start is called.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		level:  temporal.SilenceFloorDB,
		peaks:  []PublishedPeak{},
		logger: logging.WithFields(logging.Fields{"component": "tuner"}),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.source != nil {
		e.maxSampleRate = e.source.MaxSampleRate()
	}

	normalized, adjusted := cfg.Normalize(e.maxSampleRate)
	e.logAdjusted(adjusted)
	e.cfg = normalized

	e.frames = common.NewFrameBuilder(normalized.BufferSize)
	e.meter = temporal.NewLevelMeter(normalized.DBThreshold)
	e.stability = tonal.NewStabilityFilter()
	e.mapper = tonal.NewNoteMapper(normalized.ReferenceA4)
	e.detector = tonal.NewDetector(normalized.DetectionMethod, normalized.detectorParams())

	return e
}

// Accept feeds raw little-endian PCM16 mono bytes into the pipeline.
// Every complete frame is analyzed before Accept returns.
func (e *Engine) Accept(data []byte) {
	e.acceptMu.Lock()
	defer e.acceptMu.Unlock()

	e.mu.Lock()
	var events []Event
	for _, frame := range e.frames.Push(data) {
		events = e.process(frame, events)
	}
	handler := e.handler
	e.mu.Unlock()

	if handler == nil || len(events) == 0 {
		return
	}

	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()
	for _, ev := range events {
		handler(ev)
	}
}

// process runs one frame through level gating, detection, publication,
// stability and note mapping. Caller holds mu.
func (e *Engine) process(frame []float64, events []Event) []Event {
	level := e.meter.Level(frame)
	if level != e.level {
		e.level = level
		events = append(events, LevelUpdated{Level: level})
	}
	if !e.meter.Passes(level) {
		return events
	}

	det := e.detector.Detect(frame)

	published := publishPeaks(det.Peaks, e.cfg.MaxPeaks, amplitudeFloor(e.detector.Method()))
	if !samePeaks(published, e.peaks) {
		e.peaks = published
		events = append(events, PeaksUpdated{Peaks: clonePeaks(published)})
	}

	if !det.Found {
		return events
	}

	frequency, stable := e.stability.Offer(det.Frequency, det.Confidence)
	if !stable {
		return events
	}

	note := e.mapper.Map(frequency)
	if e.hasNote && note == e.note {
		return events
	}
	e.note = note
	e.hasNote = true

	e.logger.Debug("Note detected", logging.Fields{
		"note":          note.Name,
		"raw_frequency": det.Frequency,
		"frequency":     note.Frequency,
		"target":        e.mapper.NearestFrequency(note.Frequency),
		"cents":         note.Cents,
		"level":         level,
		"guidance":      note.Guidance().String(),
	})

	return append(events, NoteUpdated{Note: note})
}

// Start opens the capture source with the configured format
func (e *Engine) Start() error {
	e.ctl.Lock()
	defer e.ctl.Unlock()

	return e.start()
}

// Stop halts capture and discards any partial frame
func (e *Engine) Stop() error {
	e.ctl.Lock()
	defer e.ctl.Unlock()

	return e.stop()
}

// Reload stops capture, re-reads the device limits and starts again with the current settings
func (e *Engine) Reload() error {
	e.ctl.Lock()
	defer e.ctl.Unlock()

	if e.source == nil {
		return ErrNoSource
	}
	if err := e.stop(); err != nil {
		e.logger.Warn("Stop during reload failed", logging.Fields{"error": err.Error()})
	}

	e.maxSampleRate = e.source.MaxSampleRate()
	changed := e.update(func(*Config) {})
	if changed {
		e.emit(ConfigChanged{Config: e.Config()})
	}

	e.logger.Info("Reloading capture", logging.Fields{"max_sample_rate": e.maxSampleRate})
	return e.start()
}

// Running reports whether capture is active
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.running
}

func (e *Engine) start() error {
	if e.source == nil {
		return ErrNoSource
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.frames.Reset()
	req := Format{SampleRate: e.cfg.SampleRate}
	e.mu.Unlock()

	got, err := e.source.Start(req, e.Accept)
	if err != nil {
		return fmt.Errorf("start capture at %d Hz: %w", req.SampleRate, err)
	}

	e.mu.Lock()
	e.running = true
	fallback := got.SampleRate > 0 && got.SampleRate != req.SampleRate
	if fallback {
		e.cfg.SampleRate = got.SampleRate
		e.resetStream()
		e.rebuildDetector()
	}
	cfg := e.cfg
	e.mu.Unlock()

	if fallback {
		e.logger.Warn("Requested format not supported, using nearest", logging.Fields{
			"requested_sample_rate": req.SampleRate,
			"sample_rate":           got.SampleRate,
		})
		e.emit(ConfigChanged{Config: cfg})
	}

	e.logger.Info("Capture started", logging.Fields{
		"sample_rate": cfg.SampleRate,
		"buffer_size": cfg.BufferSize,
		"method":      string(cfg.DetectionMethod),
	})
	return nil
}

func (e *Engine) stop() error {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	if !running || e.source == nil {
		return nil
	}

	err := e.source.Stop()

	e.mu.Lock()
	e.running = false
	e.frames.Reset()
	e.mu.Unlock()

	if err != nil {
		return fmt.Errorf("stop capture: %w", err)
	}
	e.logger.Info("Capture stopped")
	return nil
}

// Config returns the effective configuration
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.cfg
}

// CurrentNote returns the last published note name, empty before the first note
func (e *Engine) CurrentNote() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.note.Name
}

// Frequency returns the last published stable frequency
func (e *Engine) Frequency() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.note.Frequency
}

// Cents returns the deviation of the last published note
func (e *Engine) Cents() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.note.Cents
}

// SignalLevel returns the level of the last processed frame in dBFS
func (e *Engine) SignalLevel() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.level
}

// Peaks returns a copy of the last published peak list
func (e *Engine) Peaks() []PublishedPeak {
	e.mu.Lock()
	defer e.mu.Unlock()

	return clonePeaks(e.peaks)
}

// MaximumSampleRate returns the highest rate the source reported, 0 if unknown
func (e *Engine) MaximumSampleRate() int {
	e.ctl.Lock()
	defer e.ctl.Unlock()

	return e.maxSampleRate
}

// Snapshot returns every published value under one lock
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		Config:  e.cfg,
		Running: e.running,
		Level:   e.level,
		Peaks:   clonePeaks(e.peaks),
		Note:    e.note,
		HasNote: e.hasNote,
	}
}

// SetSampleRate changes the capture rate and restarts capture when running
func (e *Engine) SetSampleRate(rate int) {
	e.reconfigure(func(c *Config) { c.SampleRate = rate })
}

// SetBufferSize changes the frame length and restarts capture when running
func (e *Engine) SetBufferSize(size int) {
	e.reconfigure(func(c *Config) { c.BufferSize = size })
}

// SetDbThreshold changes the gating level
func (e *Engine) SetDbThreshold(db float64) {
	e.reconfigure(func(c *Config) { c.DBThreshold = db })
}

// SetMaxPeaks changes how many peaks are published
func (e *Engine) SetMaxPeaks(n int) {
	e.reconfigure(func(c *Config) { c.MaxPeaks = n })
}

// SetReferenceA changes the A4 reference pitch
func (e *Engine) SetReferenceA(hz float64) {
	e.reconfigure(func(c *Config) { c.ReferenceA4 = hz })
}

// SetDetectionMethod switches between the autocorrelation and spectral estimators
func (e *Engine) SetDetectionMethod(m tonal.Method) {
	e.reconfigure(func(c *Config) { c.DetectionMethod = m })
}

// SetFFTPadding changes the zero-padding factor of the spectral estimator
func (e *Engine) SetFFTPadding(factor int) {
	e.reconfigure(func(c *Config) { c.FFTPadding = factor })
}

// reconfigure applies mutate, restarting capture around changes to the stream shape
func (e *Engine) reconfigure(mutate func(*Config)) {
	e.ctl.Lock()
	defer e.ctl.Unlock()

	current := e.Config()
	next := current
	mutate(&next)
	next, _ = next.Normalize(e.maxSampleRate)
	if next == current {
		return
	}

	restart := next.SampleRate != current.SampleRate || next.BufferSize != current.BufferSize
	wasRunning := e.Running()
	if restart && wasRunning {
		if err := e.stop(); err != nil {
			e.logger.Error(err, "Failed to stop capture for reconfiguration")
		}
	}

	e.update(mutate)
	cfg := e.Config()
	e.emit(ConfigChanged{Config: cfg})

	if restart && wasRunning {
		if err := e.start(); err != nil {
			e.logger.Error(err, "Failed to restart capture", logging.Fields{
				"sample_rate": cfg.SampleRate,
				"buffer_size": cfg.BufferSize,
			})
		}
	}
}

// update applies mutate under mu, normalizes and rebuilds the parts the change invalidates.
// Reports whether the effective configuration changed.
func (e *Engine) update(mutate func(*Config)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	old := e.cfg
	next := old
	mutate(&next)
	next, adjusted := next.Normalize(e.maxSampleRate)
	e.logAdjusted(adjusted)
	if next == old {
		return false
	}
	e.cfg = next

	if next.SampleRate != old.SampleRate || next.BufferSize != old.BufferSize {
		e.frames.Resize(next.BufferSize)
		e.resetStream()
	}
	if next.DBThreshold != old.DBThreshold {
		e.meter.SetThreshold(next.DBThreshold)
	}
	if next.ReferenceA4 != old.ReferenceA4 {
		e.mapper = tonal.NewNoteMapper(next.ReferenceA4)
	}
	if next.SampleRate != old.SampleRate || next.BufferSize != old.BufferSize ||
		next.FFTPadding != old.FFTPadding || next.DetectionMethod != old.DetectionMethod ||
		next.ReferenceA4 != old.ReferenceA4 {
		e.rebuildDetector()
	}

	e.logger.Debug("Configuration updated", logging.Fields{
		"sample_rate":  next.SampleRate,
		"buffer_size":  next.BufferSize,
		"max_peaks":    next.MaxPeaks,
		"reference_a4": next.ReferenceA4,
		"method":       string(next.DetectionMethod),
		"fft_padding":  next.FFTPadding,
		"db_threshold": next.DBThreshold,
	})
	return true
}

// resetStream drops the partial frame and the stability history. Caller holds mu.
func (e *Engine) resetStream() {
	e.frames.Reset()
	e.stability.Reset()
}

// rebuildDetector replaces the estimator and its scratch buffers. Caller holds mu.
func (e *Engine) rebuildDetector() {
	e.detector = tonal.NewDetector(e.cfg.DetectionMethod, e.cfg.detectorParams())
}

func (e *Engine) emit(ev Event) {
	e.mu.Lock()
	handler := e.handler
	e.mu.Unlock()
	if handler == nil {
		return
	}

	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()
	handler(ev)
}

func (e *Engine) logAdjusted(adjusted []string) {
	for _, a := range adjusted {
		e.logger.Warn("Configuration value clamped", logging.Fields{"adjustment": a})
	}
}

func clonePeaks(peaks []PublishedPeak) []PublishedPeak {
	out := make([]PublishedPeak, len(peaks))
	copy(out, peaks)
	return out
}
