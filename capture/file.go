package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-tuner/logging"
	"github.com/RyanBlaney/sonido-tuner/tuner"
)

// FileInfo holds the properties ffprobe reports for the first audio stream
type FileInfo struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
}

// NewFileSource decodes cfg.File with ffmpeg into PCM16 mono at the requested rate
func NewFileSource(cfg Config, logger logging.Logger) *StreamSource {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithFields(logging.Fields{
		"component": "capture",
		"backend":   string(BackendFile),
		"file":      cfg.File,
	})

	return &StreamSource{
		open: func(ctx context.Context, req tuner.Format) (io.ReadCloser, tuner.Format, error) {
			return startFFmpeg(ctx, cfg, req, logger)
		},
		periodFrames: max(cfg.PeriodFrames, 1),
		realtime:     cfg.Realtime,
		logger:       logger,
	}
}

// ffmpegArgs builds the command line that decodes input to raw PCM16 mono on stdout
func ffmpegArgs(input string, sampleRate int) []string {
	return []string{
		"-v", "error",
		"-nostdin",
		"-i", input,
		"-map", "0:a:0?",
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"pipe:1",
	}
}

func startFFmpeg(ctx context.Context, cfg Config, req tuner.Format, logger logging.Logger) (io.ReadCloser, tuner.Format, error) {
	path := cfg.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}
	args := ffmpegArgs(cfg.File, req.SampleRate)
	cmd := exec.CommandContext(ctx, path, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, tuner.Format{}, fmt.Errorf("ffmpeg stdout: %w", err)
	}

	logger.Debug("Running FFmpeg decode", logging.Fields{
		"command": fmt.Sprintf("%s %s", path, strings.Join(args, " ")),
	})

	if err := cmd.Start(); err != nil {
		return nil, tuner.Format{}, fmt.Errorf("start ffmpeg: %w", err)
	}

	return &commandReader{ReadCloser: stdout, cmd: cmd, stderr: &stderr}, req, nil
}

// commandReader closes the pipe and reaps the process, surfacing ffmpeg's stderr on failure
type commandReader struct {
	io.ReadCloser
	cmd    *exec.Cmd
	stderr *bytes.Buffer
}

func (c *commandReader) Close() error {
	c.ReadCloser.Close()

	err := c.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("ffmpeg decode failed: %w, stderr: %s", err, strings.TrimSpace(c.stderr.String()))
	}
	return err
}

// ProbeFile runs ffprobe on the first audio stream of path
func ProbeFile(ctx context.Context, cfg Config, path string) (*FileInfo, error) {
	probePath := cfg.FFprobePath
	if probePath == "" {
		probePath = "ffprobe"
	}
	if cfg.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ProbeTimeout)
		defer cancel()
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		path,
	}

	output, err := exec.CommandContext(ctx, probePath, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeOutput(output)
}

func parseProbeOutput(data []byte) (*FileInfo, error) {
	var probe struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			CodecName  string `json:"codec_name"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
			Duration   string `json:"duration"`
			BitRate    string `json:"bit_rate"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, errors.New("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}

	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("invalid sample rate %q", stream.SampleRate)
	}
	duration, _ := strconv.ParseFloat(stream.Duration, 64)
	bitrate, _ := strconv.Atoi(stream.BitRate)

	return &FileInfo{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
	}, nil
}

// DurationOf returns the probed duration as a time.Duration
func (fi *FileInfo) DurationOf() time.Duration {
	return time.Duration(fi.Duration * float64(time.Second))
}
