package capture

import (
	"fmt"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-tuner/logging"
	"github.com/RyanBlaney/sonido-tuner/tuner"
)

// Backend names a capture implementation
type Backend string

const (
	BackendMalgo     Backend = "malgo"
	BackendPortAudio Backend = "portaudio"
	BackendFile      Backend = "file"
)

// Config selects and tunes the capture backend
type Config struct {
	Backend      Backend       `json:"backend"`
	Device       string        `json:"device"`        // input device name, empty for the system default
	File         string        `json:"file"`          // input for the file backend, any format ffmpeg reads
	FFmpegPath   string        `json:"ffmpeg_path"`   // path to the ffmpeg binary
	FFprobePath  string        `json:"ffprobe_path"`  // path to the ffprobe binary
	PeriodFrames int           `json:"period_frames"` // samples per delivered chunk
	Realtime     bool          `json:"realtime"`      // pace file playback at the sample rate
	ProbeTimeout time.Duration `json:"probe_timeout"`
}

// DefaultConfig returns a config for the default malgo input device
func DefaultConfig() Config {
	return Config{
		Backend:      BackendMalgo,
		FFmpegPath:   "ffmpeg",
		FFprobePath:  "ffprobe",
		PeriodFrames: 1024,
		Realtime:     true,
		ProbeTimeout: 10 * time.Second,
	}
}

// ParseBackend matches a backend name case-insensitively
func ParseBackend(name string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(name))); b {
	case BackendMalgo, BackendPortAudio, BackendFile:
		return b, nil
	case "":
		return BackendMalgo, nil
	default:
		return "", fmt.Errorf("unknown capture backend %q", name)
	}
}

// Open builds the source for cfg.Backend
func Open(cfg Config, logger logging.Logger) (tuner.Source, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if cfg.PeriodFrames <= 0 {
		cfg.PeriodFrames = DefaultConfig().PeriodFrames
	}

	switch cfg.Backend {
	case BackendMalgo, "":
		src, err := NewMalgoSource(cfg, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	case BackendPortAudio:
		src, err := NewPortAudioSource(cfg, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	case BackendFile:
		if cfg.File == "" {
			return nil, fmt.Errorf("file backend needs an input file")
		}
		return NewFileSource(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown capture backend %q", cfg.Backend)
	}
}

// DeviceInfo describes one input device
type DeviceInfo struct {
	Name          string `json:"name"`
	Default       bool   `json:"default"`
	MaxSampleRate int    `json:"max_sample_rate"` // 0 when the backend does not report it
}

// ListDevices enumerates the input devices of a hardware backend
func ListDevices(backend Backend) ([]DeviceInfo, error) {
	switch backend {
	case BackendMalgo, "":
		return listMalgoDevices()
	case BackendPortAudio:
		return listPortAudioDevices()
	default:
		return nil, fmt.Errorf("backend %q has no devices", backend)
	}
}

// nearestRate returns the supported rate closest to want, preferring the higher on ties.
// An empty list accepts want unchanged.
func nearestRate(want int, supported []int) int {
	best := 0
	for _, r := range supported {
		if r <= 0 {
			continue
		}
		if r == want {
			return r
		}
		if best == 0 || abs(r-want) < abs(best-want) || (abs(r-want) == abs(best-want) && r > best) {
			best = r
		}
	}
	if best == 0 {
		return want
	}
	return best
}

func maxRate(supported []int) int {
	m := 0
	for _, r := range supported {
		m = max(m, r)
	}
	return m
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
