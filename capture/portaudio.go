package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/RyanBlaney/sonido-tuner/logging"
	"github.com/RyanBlaney/sonido-tuner/tuner"
)

// standardRates are probed against the device to find its maximum
var standardRates = []int{8000, 11025, 16000, 22050, 32000, 44100, 48000, 88200, 96000, 176400, 192000}

// PortAudioSource captures PCM16 mono through PortAudio
type PortAudioSource struct {
	cfg    Config
	logger logging.Logger
	device *portaudio.DeviceInfo

	mu     sync.Mutex
	stream *portaudio.Stream
}

// NewPortAudioSource initializes PortAudio and resolves cfg.Device, or the default input when empty
func NewPortAudioSource(cfg Config, logger logging.Logger) (*PortAudioSource, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithFields(logging.Fields{"component": "capture", "backend": string(BackendPortAudio)})

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	device, err := pickPortAudioDevice(cfg.Device)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	logger.Info("Input device selected", logging.Fields{
		"device":              device.Name,
		"default_sample_rate": device.DefaultSampleRate,
	})

	return &PortAudioSource{cfg: cfg, logger: logger, device: device}, nil
}

func pickPortAudioDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	for _, d := range devices {
		if d.MaxInputChannels > 0 && d.Name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("input device %q not found", name)
}

func (p *PortAudioSource) params(rate int) portaudio.StreamParameters {
	params := portaudio.LowLatencyParameters(p.device, nil)
	params.Input.Channels = 1
	params.Output.Channels = 0
	params.SampleRate = float64(rate)
	params.FramesPerBuffer = p.cfg.PeriodFrames
	return params
}

// Start opens an input stream at req, falling back to the device's default rate
func (p *PortAudioSource) Start(req tuner.Format, onData func([]byte)) (tuner.Format, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return tuner.Format{}, errors.New("stream already started")
	}

	callback := func(in []int16) {
		buf := make([]byte, 2*len(in))
		for i, s := range in {
			binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
		}
		onData(buf)
	}

	rate := req.SampleRate
	stream, err := portaudio.OpenStream(p.params(rate), callback)
	if err != nil {
		fallback := int(p.device.DefaultSampleRate)
		if fallback <= 0 || fallback == rate {
			return tuner.Format{}, fmt.Errorf("open stream at %d Hz: %w", rate, err)
		}
		p.logger.Debug("Requested rate rejected, trying device default", logging.Fields{
			"requested_sample_rate": rate,
			"sample_rate":           fallback,
			"error":                 err.Error(),
		})
		rate = fallback
		if stream, err = portaudio.OpenStream(p.params(rate), callback); err != nil {
			return tuner.Format{}, fmt.Errorf("open stream at %d Hz: %w", rate, err)
		}
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return tuner.Format{}, fmt.Errorf("start stream: %w", err)
	}
	p.stream = stream

	return tuner.Format{SampleRate: rate}, nil
}

// Stop halts and closes the stream
func (p *PortAudioSource) Stop() error {
	p.mu.Lock()
	stream := p.stream
	p.stream = nil
	p.mu.Unlock()

	if stream == nil {
		return nil
	}
	err := stream.Stop()
	if cerr := stream.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("stop stream: %w", err)
	}
	return nil
}

// MaxSampleRate probes the standard rates and returns the highest the device accepts
func (p *PortAudioSource) MaxSampleRate() int {
	best := 0
	for _, rate := range standardRates {
		if portaudio.IsFormatSupported(p.params(rate), make([]int16, p.cfg.PeriodFrames)) == nil {
			best = rate
		}
	}
	return best
}

// Close stops capture and terminates PortAudio
func (p *PortAudioSource) Close() error {
	err := p.Stop()
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}

func listPortAudioDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defaultIn, _ := portaudio.DefaultInputDevice()

	var out []DeviceInfo
	for _, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		out = append(out, DeviceInfo{
			Name:    d.Name,
			Default: defaultIn != nil && d.Name == defaultIn.Name,
		})
	}
	return out, nil
}
