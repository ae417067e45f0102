package main // import "displayctl"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"displayctl/display"
	"displayctl/drivers"
	"displayctl/internal/appversion"
	"displayctl/internal/config"
	"displayctl/internal/metrics"
	"displayctl/internal/publish"
	"displayctl/port"
)

const commandWait = 10 * time.Second

func main() {
	configFile := flag.String("config", "displayctl.yaml", "Configuration file")
	debug := flag.Bool("debug", false, "Set logging level to debug")
	trace := flag.Bool("trace", false, "Set logging level to trace. Implies debug.")
	listPorts := flag.Bool("ports", false, "List the available ports and exit")
	listDrivers := flag.Bool("drivers", false, "List the drivers and their capabilities and exit")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	target := flag.String("display", "", "Send a single command to the named display and exit")
	power := flag.String("power", "", "With -display, turn the display on or off")
	input := flag.String("input", "", "With -display, select an input")
	volume := flag.Int("volume", -1, "With -display, set the volume")
	mute := flag.String("mute", "", "With -display, mute (on) or unmute (off)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("displayctl %s\n", appversion.String())
		return
	}
	if *listPorts {
		ports, err := port.AvailablePorts()
		if err != nil {
			log.Fatalf("listing ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}
	if *listDrivers {
		for _, name := range drivers.Names() {
			d, _ := drivers.New(name, port.NewLoopback(nil), 0)
			fmt.Printf("%-18s %s\n", name, strings.Join(drivers.Capabilities(d), ", "))
		}
		return
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	setupLogger(cfg.Log)
	if *trace || os.Getenv("DISPLAYCTL_TRACE") != "" {
		log.SetLevel(log.TraceLevel)
	} else if *debug || os.Getenv("DISPLAYCTL_DEBUG") != "" {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *target != "" {
		action := oneShot{power: *power, input: *input, volume: *volume, mute: *mute}
		if err := runOneShot(ctx, cfg, *target, action); err != nil {
			log.Fatal(err)
		}
		return
	}

	log.Infof("displayctl %s starting with %d displays", appversion.String(), len(cfg.Displays))
	if err := serve(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
	log.Info("stopped")
}

func setupLogger(cfg config.LogConfig) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	if cfg.Output == "file" && cfg.FilePath != "" {
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err == nil {
			log.SetOutput(file)
		} else {
			log.Warnf("opening log file %s: %v, logging to stdout", cfg.FilePath, err)
		}
	}
}

// serve runs every configured display until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config) error {
	var callbacks []func(string, display.State)
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		callbacks = append(callbacks, m.StateChanged)
	}
	var pub *publish.Publisher
	if cfg.Redis.Enabled {
		var err error
		pub, err = publish.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer pub.Close()
		callbacks = append(callbacks, pub.StateChanged)
	}
	onState := func(name string, st display.State) {
		log.WithField("display", name).Infof("state: %s", st)
		for _, f := range callbacks {
			f(name, st)
		}
	}

	var displays []display.Display
	for _, dc := range cfg.Displays {
		opts := append(dc.Options(), display.WithStateCallback(onState))
		if m != nil {
			opts = append(opts, display.WithObserver(m.Observer(dc.Name)))
		}
		d, err := openDisplay(dc, opts...)
		if err != nil {
			return err
		}
		displays = append(displays, d)
	}

	var wg sync.WaitGroup
	run := func(name string, f func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("%s stopped: %v", name, err)
			}
		}()
	}
	if m != nil {
		run("metrics server", func(ctx context.Context) error {
			return m.Serve(ctx, fmt.Sprintf(":%d", cfg.Metrics.Port))
		})
	}
	if pub != nil {
		run("redis publisher", pub.Run)
	}
	for _, d := range displays {
		run(d.Name(), d.Run)
	}
	wg.Wait()
	return ctx.Err()
}

func openDisplay(dc config.DisplayConfig, opts ...display.Option) (display.Display, error) {
	d, err := drivers.New(dc.Driver, port.Open(dc.Port, dc.Baud), dc.ID, opts...)
	if err != nil {
		return nil, fmt.Errorf("display %q: %w", dc.Name, err)
	}
	log.WithField("display", dc.Name).Debugf("%s driver on %s, capabilities: %s",
		dc.Driver, dc.Port, strings.Join(drivers.Capabilities(d), ", "))
	return d, nil
}
