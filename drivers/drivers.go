// Package drivers creates vendor drivers by name.
package drivers

import (
	"errors"
	"fmt"
	"sort"

	"displayctl/display"
	"displayctl/drivers/christie"
	"displayctl/drivers/nec"
	"displayctl/drivers/neclcd"
	"displayctl/drivers/panasonic"
	"displayctl/drivers/planar"
	"displayctl/drivers/samsungconsumer"
	"displayctl/drivers/samsungpro"
	"displayctl/drivers/sharp"
	"displayctl/drivers/sony"
	"displayctl/port"
)

// ErrUnknownDriver is returned by New for names not in Names.
var ErrUnknownDriver = errors.New("unknown driver")

// Constructor creates a driver on p. id is the address of the display
// for the protocols that have one, others ignore it.
type Constructor func(p port.Port, id int, opts ...display.Option) display.Display

var constructors = map[string]Constructor{
	"christie": func(p port.Port, _ int, opts ...display.Option) display.Display {
		return christie.New(p, opts...)
	},
	"nec": func(p port.Port, _ int, opts ...display.Option) display.Display {
		return nec.New(p, opts...)
	},
	"nec-lcd": func(p port.Port, id int, opts ...display.Option) display.Display {
		monitor, err := neclcd.Address(id)
		if err != nil {
			monitor, _ = neclcd.Address(neclcd.DefaultID)
		}
		return neclcd.New(p, monitor, opts...)
	},
	"panasonic": func(p port.Port, _ int, opts ...display.Option) display.Display {
		return panasonic.New(p, opts...)
	},
	"planar": func(p port.Port, _ int, opts ...display.Option) display.Display {
		return planar.New(p, opts...)
	},
	"samsung": func(p port.Port, id int, opts ...display.Option) display.Display {
		if id <= 0 || id > 0xff {
			id = samsungpro.DefaultID
		}
		return samsungpro.New(p, byte(id), opts...)
	},
	"samsung-consumer": func(p port.Port, _ int, opts ...display.Option) display.Display {
		return samsungconsumer.New(p, opts...)
	},
	"sharp": func(p port.Port, _ int, opts ...display.Option) display.Display {
		return sharp.New(p, opts...)
	},
	"sony": func(p port.Port, _ int, opts ...display.Option) display.Display {
		return sony.New(p, opts...)
	},
}

// Names returns the known driver names, sorted.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Known reports whether name is a driver name.
func Known(name string) bool {
	_, ok := constructors[name]
	return ok
}

// New returns the driver called name.
func New(name string, p port.Port, id int, opts ...display.Option) (display.Display, error) {
	c, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w %q, known drivers are %v", ErrUnknownDriver, name, Names())
	}
	return c(p, id, opts...), nil
}

// Capabilities returns the names of the capabilities d has.
func Capabilities(d display.Display) []string {
	var caps []string
	if _, ok := d.(display.PowerCapable); ok {
		caps = append(caps, "power")
	}
	if _, ok := d.(display.InputSelectable); ok {
		caps = append(caps, "input")
	}
	if _, ok := d.(display.VolumeCapable); ok {
		caps = append(caps, "volume")
	}
	if _, ok := d.(display.MuteCapable); ok {
		caps = append(caps, "mute")
	}
	if _, ok := d.(display.ScalingCapable); ok {
		caps = append(caps, "scaling")
	}
	return caps
}
