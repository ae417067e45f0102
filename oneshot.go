package main

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"displayctl/display"
	"displayctl/internal/config"
)

// oneShot is a single command given on the command line.
type oneShot struct {
	power  string
	input  string
	volume int
	mute   string
}

func (o oneShot) empty() bool {
	return o.power == "" && o.input == "" && o.volume < 0 && o.mute == ""
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid value %q, want on or off", s)
}

// apply issues the commands of o to d.
func (o oneShot) apply(d display.Display) error {
	if o.power != "" {
		on, err := parseOnOff(o.power)
		if err != nil {
			return err
		}
		p, ok := d.(display.PowerCapable)
		if !ok {
			return fmt.Errorf("power: %w", display.ErrUnsupported)
		}
		if on {
			p.PowerOn()
		} else {
			p.PowerOff()
		}
	}
	if o.input != "" {
		s, ok := d.(display.InputSelectable)
		if !ok {
			return fmt.Errorf("input: %w", display.ErrUnsupported)
		}
		if err := s.SetInput(display.Input(o.input)); err != nil {
			return fmt.Errorf("%w, available inputs are %v", err, s.Inputs())
		}
	}
	if o.volume >= 0 {
		v, ok := d.(display.VolumeCapable)
		if !ok {
			return fmt.Errorf("volume: %w", display.ErrUnsupported)
		}
		if err := v.SetVolume(o.volume); err != nil {
			return err
		}
	}
	if o.mute != "" {
		muted, err := parseOnOff(o.mute)
		if err != nil {
			return err
		}
		m, ok := d.(display.MuteCapable)
		if !ok {
			return fmt.Errorf("mute: %w", display.ErrUnsupported)
		}
		m.SetMute(muted)
	}
	return nil
}

type quiescent interface {
	Idle() bool
}

// idle reports whether d has nothing queued or in flight and every
// response has been applied to its state.
func idle(d display.Display) bool {
	q, ok := d.(quiescent)
	return !ok || q.Idle()
}

func waitFor(ctx context.Context, cond func() bool) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for !cond() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// runOneShot connects to the display called name, sends the commands
// in action, waits for them to complete and prints the final state.
// Without an action it just prints the state.
func runOneShot(ctx context.Context, cfg *config.Config, name string, action oneShot) error {
	dc, ok := cfg.Display(name)
	if !ok {
		return fmt.Errorf("no display named %q in the configuration", name)
	}
	opts := append(dc.Options(), display.WithPollInterval(0))
	d, err := openDisplay(dc, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, commandWait)
	defer waitCancel()
	if err := waitFor(waitCtx, func() bool { return d.State().Online }); err != nil {
		return fmt.Errorf("%s is not reachable on %s: %w", name, dc.Port, err)
	}
	// Coming online queues a poll, let it finish so the state printed
	// below is complete.
	if err := waitFor(waitCtx, func() bool { return idle(d) }); err != nil {
		return err
	}
	if !action.empty() {
		if err := action.apply(d); err != nil {
			return err
		}
		if err := waitFor(waitCtx, func() bool { return idle(d) }); err != nil {
			return err
		}
		d.Poll()
		if err := waitFor(waitCtx, func() bool { return idle(d) }); err != nil {
			return err
		}
	}
	log.WithField("display", name).Debug("done")
	fmt.Printf("%s: %s\n", name, d.State())
	return nil
}
