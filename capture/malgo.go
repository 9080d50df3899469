package capture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/RyanBlaney/sonido-tuner/logging"
	"github.com/RyanBlaney/sonido-tuner/tuner"
)

// MalgoSource captures PCM16 mono from a miniaudio input device
type MalgoSource struct {
	cfg    Config
	logger logging.Logger

	ctx  *malgo.AllocatedContext
	info malgo.DeviceInfo

	mu     sync.Mutex
	device *malgo.Device
}

// NewMalgoSource initializes miniaudio and resolves cfg.Device, or the default input when empty
func NewMalgoSource(cfg Config, logger logging.Logger) (*MalgoSource, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithFields(logging.Fields{"component": "capture", "backend": string(BackendMalgo)})

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", logging.Fields{"message": message})
	})
	if err != nil {
		return nil, fmt.Errorf("malgo init: %w", err)
	}

	devices, err := ctx.Devices(malgo.Capture)
	if err != nil {
		freeContext(ctx)
		return nil, fmt.Errorf("list capture devices: %w", err)
	}

	info, err := pickMalgoDevice(devices, cfg.Device)
	if err != nil {
		freeContext(ctx)
		return nil, err
	}

	logger.Info("Input device selected", logging.Fields{
		"device":          info.Name(),
		"max_sample_rate": maxRate(malgoRates(info)),
	})

	return &MalgoSource{cfg: cfg, logger: logger, ctx: ctx, info: info}, nil
}

func pickMalgoDevice(devices []malgo.DeviceInfo, name string) (malgo.DeviceInfo, error) {
	if len(devices) == 0 {
		return malgo.DeviceInfo{}, errors.New("no capture devices found")
	}
	for _, d := range devices {
		if name == "" && d.IsDefault != 0 {
			return d, nil
		}
		if name != "" && d.Name() == name {
			return d, nil
		}
	}
	if name != "" {
		return malgo.DeviceInfo{}, fmt.Errorf("capture device %q not found", name)
	}
	return devices[0], nil
}

func malgoRates(info malgo.DeviceInfo) []int {
	n := min(int(info.FormatCount), len(info.Formats))
	rates := make([]int, 0, n)
	for i := 0; i < n; i++ {
		rates = append(rates, int(info.Formats[i].SampleRate))
	}
	return rates
}

// Start opens the device at the supported rate nearest to req
func (m *MalgoSource) Start(req tuner.Format, onData func([]byte)) (tuner.Format, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return tuner.Format{}, errors.New("device already started")
	}

	rate := nearestRate(req.SampleRate, malgoRates(m.info))

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.Capture.Format = malgo.FormatS16
	config.Capture.Channels = 1
	config.Capture.DeviceID = m.info.ID.Pointer()
	config.SampleRate = uint32(rate)
	config.PeriodSizeInFrames = uint32(m.cfg.PeriodFrames)
	config.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			if len(input) > 0 {
				onData(input)
			}
		},
	}

	device, err := malgo.InitDevice(m.ctx.Context, config, callbacks)
	if err != nil {
		return tuner.Format{}, fmt.Errorf("init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return tuner.Format{}, fmt.Errorf("start device: %w", err)
	}
	m.device = device

	return tuner.Format{SampleRate: rate}, nil
}

// Stop halts and releases the device
func (m *MalgoSource) Stop() error {
	m.mu.Lock()
	device := m.device
	m.device = nil
	m.mu.Unlock()

	if device == nil {
		return nil
	}
	err := device.Stop()
	device.Uninit()
	if err != nil {
		return fmt.Errorf("stop device: %w", err)
	}
	return nil
}

// MaxSampleRate returns the highest rate the device reports
func (m *MalgoSource) MaxSampleRate() int {
	return maxRate(malgoRates(m.info))
}

// Close stops capture and frees the miniaudio context
func (m *MalgoSource) Close() error {
	err := m.Stop()
	freeContext(m.ctx)
	return err
}

func freeContext(ctx *malgo.AllocatedContext) {
	_ = ctx.Uninit()
	ctx.Free()
}

func listMalgoDevices() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo init: %w", err)
	}
	defer freeContext(ctx)

	devices, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("list capture devices: %w", err)
	}

	out := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		name := d.Name()
		if name == "" {
			name = "Unknown input"
		}
		out = append(out, DeviceInfo{
			Name:          name,
			Default:       d.IsDefault != 0,
			MaxSampleRate: maxRate(malgoRates(d)),
		})
	}
	return out, nil
}
