package audio

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"go.uber.org/zap"
)

// CommandSource reads raw little-endian PCM16 mono audio from the stdout of
// a capture command such as `arecord -q -f S16_LE -c 1 -r 16000 -t raw`.
type CommandSource struct {
	Argv       []string
	SampleRate int
	// FrameSamples is the number of samples delivered per buffer.
	FrameSamples int
	Logger       *zap.Logger

	mu  sync.Mutex
	cmd *exec.Cmd
}

func (c *CommandSource) Start(onBuffer func(Buffer)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd != nil {
		return errors.New("audio source already running")
	}
	if len(c.Argv) == 0 {
		return errors.New("no capture command configured")
	}

	cmd := exec.Command(c.Argv[0], c.Argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start capture command: %w", err)
	}

	frame := c.FrameSamples
	if frame <= 0 {
		frame = 1024
	}
	c.cmd = cmd

	go func() {
		buf := make([]byte, frame*2)
		for {
			n, err := io.ReadFull(stdout, buf)
			if n >= 2 {
				onBuffer(Buffer{Samples: PCM16(buf[:n-n%2]), SampleRate: c.SampleRate})
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && c.Logger != nil {
					c.Logger.Debug("Capture stream ended", zap.Error(err))
				}
				return
			}
		}
	}()
	return nil
}

// Stop kills the capture command. It does not wait for an in-flight buffer
// delivery to return.
func (c *CommandSource) Stop() error {
	c.mu.Lock()
	cmd := c.cmd
	c.cmd = nil
	c.mu.Unlock()

	if cmd == nil {
		return nil
	}
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
