package detect

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"reelsmith/internal/logging"
	"reelsmith/internal/sampler"
	"reelsmith/internal/services"
)

// CommandBackend shells out to an external detector for every unit of work.
// The detector receives raw pixels or PCM on stdin and prints a JSON array of
// detections on stdout. Any substitute model runs behind this protocol without
// changes here.
type CommandBackend struct {
	command string
	logger  *slog.Logger
}

// NewCommandBackend wraps the configured detector command.
func NewCommandBackend(command string, logger *slog.Logger) *CommandBackend {
	return &CommandBackend{
		command: command,
		logger:  logging.NewComponentLogger(logger, "detect-command"),
	}
}

func (c *CommandBackend) Name() string { return "command" }

type commandFace struct {
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	W          float64   `json:"w"`
	H          float64   `json:"h"`
	Confidence float64   `json:"confidence"`
	Embedding  []float32 `json:"embedding"`
}

type commandAudioEvent struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

func (c *CommandBackend) DetectFaces(ctx context.Context, frame sampler.Frame) ([]Detection, error) {
	args := []string{
		"faces",
		"--width", fmt.Sprintf("%d", frame.Width),
		"--height", fmt.Sprintf("%d", frame.Height),
		"--timestamp", fmt.Sprintf("%g", frame.Timestamp),
	}
	output, err := c.run(ctx, args, frame.Pixels)
	if err != nil {
		return nil, err
	}

	var faces []commandFace
	if err := json.Unmarshal(output, &faces); err != nil {
		return nil, services.Wrap(services.ErrDetectionBackend, "detect", "parse faces", c.command, err)
	}
	dets := make([]Detection, 0, len(faces))
	for _, f := range faces {
		region := Region{X: f.X, Y: f.Y, W: f.W, H: f.H}
		dets = append(dets, Detection{
			Timestamp:  frame.Timestamp,
			Kind:       KindFace,
			Region:     &region,
			Confidence: f.Confidence,
			Embedding:  f.Embedding,
			CameraID:   frame.CameraID,
		})
	}
	return dets, nil
}

func (c *CommandBackend) DetectAudioEvents(ctx context.Context, window sampler.AudioWindow) ([]Detection, error) {
	args := []string{
		"audio-events",
		"--rate", fmt.Sprintf("%d", window.SampleRate),
		"--timestamp", fmt.Sprintf("%g", window.Timestamp),
	}
	pcm := make([]byte, len(window.Samples)*2)
	for i, s := range window.Samples {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(s))
	}
	output, err := c.run(ctx, args, pcm)
	if err != nil {
		return nil, err
	}

	var events []commandAudioEvent
	if err := json.Unmarshal(output, &events); err != nil {
		return nil, services.Wrap(services.ErrDetectionBackend, "detect", "parse audio events", c.command, err)
	}
	dets := make([]Detection, 0, len(events))
	for _, e := range events {
		dets = append(dets, Detection{
			Timestamp:  window.Timestamp,
			Kind:       KindAudioEvent,
			Confidence: e.Confidence,
			Label:      e.Label,
			CameraID:   window.CameraID,
		})
	}
	return dets, nil
}

func (c *CommandBackend) run(ctx context.Context, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.command, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = c.command
		}
		return nil, services.Wrap(services.ErrDetectionBackend, "detect", args[0], detail, err)
	}
	return bytes.TrimSpace(stdout.Bytes()), nil
}
