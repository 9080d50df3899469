// Command tuner listens to an input device or audio file and prints the detected note.
//
// Usage:
//
//	tuner [flags]
//
// Examples:
//
//	tuner
//	tuner -backend portaudio -device "USB Audio"
//	tuner -backend file -file open-strings.flac -method autocorrelation
//	tuner -list-devices
//	tuner -verify-fft
//
// SIGHUP reloads capture after a device change.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/RyanBlaney/sonido-tuner/algorithms/spectral"
	"github.com/RyanBlaney/sonido-tuner/algorithms/tonal"
	"github.com/RyanBlaney/sonido-tuner/capture"
	"github.com/RyanBlaney/sonido-tuner/logging"
	"github.com/RyanBlaney/sonido-tuner/tuner"
)

type options struct {
	configPath  string
	logLevel    string
	listDevices bool
	verifyFFT   bool
	showPeaks   bool
	noColor     bool

	backend  string
	device   string
	file     string
	ffmpeg   string
	realtime bool

	sampleRate int
	bufferSize int
	padding    int
	maxPeaks   int
	method     string
	reference  float64
	threshold  float64
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "JSON engine configuration file")
	flag.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	flag.BoolVar(&opts.listDevices, "list-devices", false, "list input devices of the selected backend and exit")
	flag.BoolVar(&opts.verifyFFT, "verify-fft", false, "compare the in-house FFT with the reference transform and exit")
	flag.BoolVar(&opts.showPeaks, "peaks", false, "log every published peak list")
	flag.BoolVar(&opts.noColor, "no-color", false, "disable colored log output")

	flag.StringVar(&opts.backend, "backend", string(capture.BackendMalgo), "capture backend: malgo, portaudio or file")
	flag.StringVar(&opts.device, "device", "", "input device name, empty for the system default")
	flag.StringVar(&opts.file, "file", "", "audio file for the file backend")
	flag.StringVar(&opts.ffmpeg, "ffmpeg", "ffmpeg", "path to the ffmpeg binary")
	flag.BoolVar(&opts.realtime, "realtime", true, "pace file playback at the sample rate")

	flag.IntVar(&opts.sampleRate, "rate", tuner.DefaultSampleRate, "sample rate in Hz")
	flag.IntVar(&opts.bufferSize, "buffer", tuner.DefaultBufferSize, "analysis frame length in samples")
	flag.IntVar(&opts.padding, "padding", tuner.DefaultFFTPadding, "FFT zero-padding factor (1-8)")
	flag.IntVar(&opts.maxPeaks, "max-peaks", tuner.DefaultMaxPeaks, "number of peaks to publish")
	flag.StringVar(&opts.method, "method", string(tonal.MethodFFT), "detection method: fft or autocorrelation")
	flag.Float64Var(&opts.reference, "reference", tonal.DefaultReferenceA4, "A4 reference pitch in Hz")
	flag.Float64Var(&opts.threshold, "threshold", tuner.DefaultDBThreshold, "gating level in dBFS")
	flag.Parse()

	logger := logging.NewDefaultLogger()
	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		logger.Warn("Falling back to info logging", logging.Fields{"error": err.Error()})
	}
	logger.SetLevel(level)
	logging.SetGlobalLogger(logger)
	if opts.noColor {
		logging.DisableColors()
	}

	if err := run(opts, logger, os.Stdout); err != nil {
		logger.Fatal(err, "Tuner failed")
	}
}

func run(opts options, logger logging.Logger, out io.Writer) error {
	cfg, err := engineConfig(opts)
	if err != nil {
		return err
	}

	if opts.verifyFFT {
		return verifyFFT(cfg, out)
	}

	backend, err := capture.ParseBackend(opts.backend)
	if err != nil {
		return err
	}
	if opts.listDevices {
		return listDevices(backend, out)
	}

	captureCfg := capture.DefaultConfig()
	captureCfg.Backend = backend
	captureCfg.Device = opts.device
	captureCfg.File = opts.file
	captureCfg.FFmpegPath = opts.ffmpeg
	captureCfg.Realtime = opts.realtime

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if backend == capture.BackendFile && opts.file != "" {
		if info, err := capture.ProbeFile(ctx, captureCfg, opts.file); err != nil {
			logger.Warn("Could not probe input file", logging.Fields{"error": err.Error()})
		} else {
			logger.Info("Input file", logging.Fields{
				"sample_rate": info.SampleRate,
				"channels":    info.Channels,
				"codec":       info.Codec,
				"duration":    info.DurationOf().String(),
			})
		}
	}

	source, err := capture.Open(captureCfg, logger)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	if closer, ok := source.(io.Closer); ok {
		defer closer.Close()
	}

	events := make(chan tuner.Event, 64)
	engine := tuner.New(cfg,
		tuner.WithSource(source),
		tuner.WithLogger(logger.WithFields(logging.Fields{"component": "tuner"})),
		tuner.WithHandler(tuner.ChannelHandler(events)),
	)

	if err := engine.Start(); err != nil {
		return err
	}
	defer engine.Stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	var finished <-chan struct{}
	if s, ok := source.(*capture.StreamSource); ok {
		finished = s.Done()
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
			return nil
		case <-finished:
			logger.Info("Input finished", logging.Fields{"last_note": engine.CurrentNote()})
			return source.(*capture.StreamSource).Err()
		case <-hup:
			if err := engine.Reload(); err != nil {
				logger.Error(err, "Reload failed")
			}
			if s, ok := source.(*capture.StreamSource); ok {
				finished = s.Done()
			}
		case ev := <-events:
			report(ev, logger, opts.showPeaks)
		}
	}
}

// engineConfig layers the config file, then explicitly set flags, over the defaults
func engineConfig(opts options) (tuner.Config, error) {
	cfg := tuner.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := tuner.LoadConfig(opts.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "rate":
			cfg.SampleRate = opts.sampleRate
		case "buffer":
			cfg.BufferSize = opts.bufferSize
		case "padding":
			cfg.FFTPadding = opts.padding
		case "max-peaks":
			cfg.MaxPeaks = opts.maxPeaks
		case "method":
			cfg.DetectionMethod = tonal.Method(opts.method)
		case "reference":
			cfg.ReferenceA4 = opts.reference
		case "threshold":
			cfg.DBThreshold = opts.threshold
		}
	})

	return cfg, nil
}

func report(ev tuner.Event, logger logging.Logger, showPeaks bool) {
	switch e := ev.(type) {
	case tuner.NoteUpdated:
		logger.Info(fmt.Sprintf("%-4s %s", e.Note.Name, e.Note.Guidance()), logging.Fields{
			"frequency": fmt.Sprintf("%.2f", e.Note.Frequency),
			"cents":     fmt.Sprintf("%+.1f", e.Note.Cents),
		})
	case tuner.LevelUpdated:
		logger.Debug("Level", logging.Fields{"dbfs": fmt.Sprintf("%.1f", e.Level)})
	case tuner.PeaksUpdated:
		if !showPeaks {
			return
		}
		for i, p := range e.Peaks {
			logger.Info("Peak", logging.Fields{
				"rank":      i + 1,
				"frequency": fmt.Sprintf("%.2f", p.Frequency),
				"amplitude": fmt.Sprintf("%.3f", p.Amplitude),
				"harmonics": p.HarmonicCount,
			})
		}
	case tuner.ConfigChanged:
		logger.Info("Configuration changed", logging.Fields{
			"sample_rate": e.Config.SampleRate,
			"buffer_size": e.Config.BufferSize,
			"method":      string(e.Config.DetectionMethod),
		})
	}
}

func listDevices(backend capture.Backend, out io.Writer) error {
	devices, err := capture.ListDevices(backend)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDEFAULT\tMAX RATE")
	for _, d := range devices {
		rate := "-"
		if d.MaxSampleRate > 0 {
			rate = fmt.Sprintf("%d", d.MaxSampleRate)
		}
		fmt.Fprintf(w, "%s\t%v\t%s\n", d.Name, d.Default, rate)
	}
	return w.Flush()
}

// verifyFFT checks the radix-2 transform used by the spectral detector against go-dsp
func verifyFFT(cfg tuner.Config, out io.Writer) error {
	cfg, _ = cfg.Normalize(0)
	size := spectral.NextPowerOfTwo(cfg.BufferSize * cfg.FFTPadding)

	x := make([]float64, size)
	for i := range x {
		t := float64(i) / float64(cfg.SampleRate)
		x[i] = 0.5*math.Sin(2*math.Pi*196*t) + 0.3*math.Sin(2*math.Pi*1234.5*t) + 0.1*math.Cos(2*math.Pi*37*t)
	}

	deviation, err := spectral.NewRadix2(size).MaxDeviation(x)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "fft size %d, max deviation from reference %.3e\n", size, deviation)
	if deviation > 1e-6*float64(size) {
		return fmt.Errorf("fft deviation %.3e exceeds tolerance", deviation)
	}
	return nil
}
