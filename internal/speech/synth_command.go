package speech

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	apierrors "github.com/diogo/geminivoice/internal/errors"
)

// Synthesizer drivers, in auto-detection order
const (
	DriverEspeakNG = "espeak-ng"
	DriverEspeak   = "espeak"
	DriverSay      = "say"
	DriverSpdSay   = "spd-say"
)

// Drivers lists the supported TTS commands in detection order
func Drivers() []string {
	return []string{DriverEspeakNG, DriverEspeak, DriverSay, DriverSpdSay}
}

// CommandSynthesizer speaks through a local TTS command. One utterance plays
// at a time; a new Speak replaces the one in progress.
type CommandSynthesizer struct {
	driver string
	path   string

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

// NewCommandSynthesizer drives the TTS command at path using driver's flags
func NewCommandSynthesizer(driver, path string) *CommandSynthesizer {
	if path == "" {
		path = driver
	}
	return &CommandSynthesizer{driver: driver, path: path}
}

// Name returns the driver name
func (c *CommandSynthesizer) Name() string { return c.driver }

// Speak starts reading text aloud and returns without waiting
func (c *CommandSynthesizer) Speak(text string, voice Voice) error {
	if err := c.Cancel(); err != nil {
		return err
	}

	args, stdin := c.args(text, voice)
	cmd := exec.Command(c.path, args...)
	if stdin {
		cmd.Stdin = strings.NewReader(text)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", c.driver, err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	prev, prevDone := c.cmd, c.done
	c.cmd = cmd
	c.done = done
	c.mu.Unlock()

	// A concurrent Speak won the race; only one utterance plays.
	if prev != nil {
		_ = prev.Process.Kill()
		<-prevDone
	}

	go func() {
		_ = cmd.Wait()
		c.mu.Lock()
		if c.cmd == cmd {
			c.cmd = nil
			c.done = nil
		}
		c.mu.Unlock()
		close(done)
	}()
	return nil
}

// Cancel kills the utterance in progress and waits for the process to exit
func (c *CommandSynthesizer) Cancel() error {
	c.mu.Lock()
	cmd, done := c.cmd, c.done
	c.cmd, c.done = nil, nil
	c.mu.Unlock()

	if cmd == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to stop %s: %w", c.driver, err)
	}
	<-done
	return nil
}

// Speaking reports whether an utterance is playing
func (c *CommandSynthesizer) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cmd != nil
}

// args maps the voice onto the driver's flags. The second result tells
// whether text is fed on stdin instead of the command line.
func (c *CommandSynthesizer) args(text string, voice Voice) ([]string, bool) {
	rate := voice.Rate
	if rate <= 0 {
		rate = 1
	}
	pitch := voice.Pitch
	if pitch <= 0 {
		pitch = 1
	}
	locale := voice.Locale
	if locale == "" {
		locale = DefaultLocale
	}

	switch c.driver {
	case DriverEspeakNG, DriverEspeak:
		// 175 words per minute and pitch 50 (0-99) are espeak's defaults
		return []string{
			"-v", strings.ToLower(locale),
			"-s", strconv.Itoa(int(175 * rate)),
			"-p", strconv.Itoa(clamp(int(50*pitch), 0, 99)),
			"--stdin",
		}, true
	case DriverSay:
		return []string{"-r", strconv.Itoa(int(175 * rate))}, true
	case DriverSpdSay:
		// -100..100 around 0; -w keeps the process alive while speaking
		return []string{
			"-w",
			"-l", strings.ToLower(strings.SplitN(locale, "-", 2)[0]),
			"-r", strconv.Itoa(clamp(int((rate-1)*100), -100, 100)),
			"-p", strconv.Itoa(clamp(int((pitch-1)*100), -100, 100)),
			"--", text,
		}, false
	default:
		return nil, true
	}
}

// DetectSynthesizer finds a TTS command on PATH. name is "auto", "none" or
// one of Drivers(). It returns a nil Synthesizer and a CapabilityError when
// nothing usable is installed.
func DetectSynthesizer(name string) (Synthesizer, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "none", "off":
		return nil, apierrors.NewCapabilityError("speech synthesis", "disabled in config")
	case "", "auto":
		for _, driver := range Drivers() {
			if path, err := exec.LookPath(driver); err == nil {
				return NewCommandSynthesizer(driver, path), nil
			}
		}
		return nil, apierrors.NewCapabilityError("speech synthesis", "none of "+strings.Join(Drivers(), ", ")+" found in PATH")
	}

	if !isDriver(name) {
		return nil, fmt.Errorf("unknown synthesizer %q", name)
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, apierrors.NewCapabilityError("speech synthesis", name+" not found in PATH")
	}
	return NewCommandSynthesizer(name, path), nil
}

func isDriver(name string) bool {
	for _, d := range Drivers() {
		if d == name {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
