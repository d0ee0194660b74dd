/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MediaPlaceholder in an argument is replaced by the media path. When no
// argument carries it, the path is appended.
const MediaPlaceholder = "{media}"

// stopTimeout bounds how long Stop waits after an interrupt before killing.
const stopTimeout = 5 * time.Second

// Process plays media by running an external player binary, one process per item.
type Process struct {
	bin    string
	args   []string
	logger zerolog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	media   string
	done    chan struct{} // closed when the process has exited
	lastErr error
}

// NewProcess creates a process player for bin with args.
func NewProcess(bin string, args []string, logger zerolog.Logger) *Process {
	return &Process{
		bin:    bin,
		args:   append([]string(nil), args...),
		logger: logger.With().Str("component", "player").Logger(),
	}
}

// Play launches the player for media, stopping the current process first.
// Cancelling ctx kills the process.
func (p *Process) Play(ctx context.Context, media string) error {
	if _, err := os.Stat(media); err != nil {
		return fmt.Errorf("media %s: %w", media, err)
	}
	if p.IsPlaying() {
		p.logger.Debug().Str("media", p.current()).Msg("replacing current item")
		if err := p.Stop(); err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cmd := exec.CommandContext(ctx, p.bin, p.commandArgs(media)...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.bin, err)
	}

	p.cmd = cmd
	p.media = media
	p.done = make(chan struct{})
	p.lastErr = nil
	p.logger.Debug().Str("media", media).Int("pid", cmd.Process.Pid).Msg("player started")

	// Single goroutine to wait for process completion
	go func(done chan struct{}, c *exec.Cmd) {
		err := c.Wait()
		p.mu.Lock()
		if p.done == done {
			p.lastErr = err
		}
		p.mu.Unlock()
		close(done)
		if err != nil {
			p.logger.Debug().Err(err).Str("media", media).Msg("player exited with error")
		} else {
			p.logger.Debug().Str("media", media).Msg("player finished")
		}
	}(p.done, cmd)

	return nil
}

func (p *Process) current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.media
}

// IsPlaying reports whether the last started process is still running.
func (p *Process) IsPlaying() bool {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Err returns the exit error of the last finished process.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Stop terminates the running process.
func (p *Process) Stop() error {
	p.mu.Lock()
	cmd := p.cmd
	done := p.done
	p.mu.Unlock()

	if cmd == nil || done == nil {
		return nil
	}

	// Check if already exited
	select {
	case <-done:
		return nil
	default:
	}

	if cmd.Process != nil {
		_ = cmd.Process.Signal(os.Interrupt)
	}

	select {
	case <-time.After(stopTimeout):
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
	case <-done:
	}
	return nil
}

func (p *Process) commandArgs(media string) []string {
	args := make([]string, 0, len(p.args)+1)
	substituted := false
	for _, a := range p.args {
		if strings.Contains(a, MediaPlaceholder) {
			a = strings.ReplaceAll(a, MediaPlaceholder, media)
			substituted = true
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, media)
	}
	return args
}
