package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Player plays an encoded audio clip, returning when playback ends or ctx
// is cancelled.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// LocalSpeaker speaks text with an on-device voice and no network access.
type LocalSpeaker interface {
	Speak(ctx context.Context, text string) error
}

// CommandPlayer pipes audio into a player command's stdin, for example
// `ffplay -nodisp -autoexit -loglevel quiet -` or `mpg123 -q -`.
type CommandPlayer struct {
	Argv []string
}

func (p CommandPlayer) Play(ctx context.Context, audio []byte) error {
	if len(p.Argv) == 0 {
		return errors.New("no player command configured")
	}
	cmd := exec.CommandContext(ctx, p.Argv[0], p.Argv[1:]...)
	cmd.Stdin = bytes.NewReader(audio)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("player %s: %w", p.Argv[0], err)
	}
	return nil
}

// CommandSpeaker runs an on-device synthesizer with the text as its final
// argument, for example `espeak-ng -v en-us -s 175` or `say -r 180`.
type CommandSpeaker struct {
	Argv []string
}

func (s CommandSpeaker) Speak(ctx context.Context, text string) error {
	if len(s.Argv) == 0 {
		return errors.New("no speech command configured")
	}
	args := append(append([]string{}, s.Argv[1:]...), text)
	cmd := exec.CommandContext(ctx, s.Argv[0], args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("speaker %s: %w", s.Argv[0], err)
	}
	return nil
}
