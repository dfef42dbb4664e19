// Command portalboxd is the portal box access-control service. It
// boots, identifies itself to the directory by MAC address, and then
// drives the session state machine (internal/session) until a shutdown
// card or SIGTERM ends it.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/thenewsboston-makerspace/portalboxd/internal/button"
	"github.com/thenewsboston-makerspace/portalboxd/internal/config"
	"github.com/thenewsboston-makerspace/portalboxd/internal/directory"
	"github.com/thenewsboston-makerspace/portalboxd/internal/hal"
	"github.com/thenewsboston-makerspace/portalboxd/internal/led"
	"github.com/thenewsboston-makerspace/portalboxd/internal/notifier"
	"github.com/thenewsboston-makerspace/portalboxd/internal/rfid"
	"github.com/thenewsboston-makerspace/portalboxd/internal/session"
	"github.com/thenewsboston-makerspace/portalboxd/internal/watchdog"
)

// cli is the kong command line surface: one optional
// positional argument, the path to the config INI, defaulting to
// config.ini in the working directory.
var cli struct {
	Config string `arg:"" optional:"" default:"config.ini" help:"Path to the configuration INI file."`
}

const (
	rfidSPIBus = "/dev/spidev0.0"
	ledSPIBus  = "/dev/spidev1.0"
	cpuinfoPath = "/proc/cpuinfo"
)

func main() {
	kong.Parse(&cli, kong.Name("portalboxd"), kong.Description("Portal box access-control service"))
	os.Exit(run(cli.Config))
}

func run(configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "portalboxd: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if _, err := host.Init(); err != nil {
		logger.Error("portalboxd: periph host init failed", "err", err)
		return 1
	}

	rev, err := hal.Revision(cpuinfoPath)
	if err != nil {
		logger.Warn("portalboxd: could not read board revision, assuming non-Zero-W polarity", "err", err)
	}
	isZeroW := hal.IsPiZeroW(rev)

	box, err := hal.Open(isZeroW)
	if err != nil {
		logger.Error("portalboxd: failed to open hardware", "err", err)
		return 1
	}
	defer box.Shutdown()

	display, err := openDisplay(cfg.Display, isZeroW)
	if err != nil {
		logger.Error("portalboxd: failed to open display driver", "err", err)
		return 1
	}
	defer display.Close()

	reader, err := openReader(box, display, logger)
	if err != nil {
		logger.Error("portalboxd: failed to open card reader", "err", err)
		return 1
	}

	buttonPin, err := hal.Pin(hal.PinButton)
	if err != nil {
		logger.Error("portalboxd: failed to resolve button pin", "err", err)
		return 1
	}
	buttons := button.NewQueue(button.DefaultCapacity)
	if err := button.Listen(buttonPin, buttons); err != nil {
		logger.Error("portalboxd: failed to listen for button edges", "err", err)
		return 1
	}

	mode := directory.PerCall
	if cfg.Database.UsePersistentConnection {
		mode = directory.Persistent
	}
	dir, err := directory.Open(cfg.Database, mode, logger)
	if err != nil {
		logger.Error("portalboxd: failed to connect to directory", "err", err)
		return 1
	}
	defer dir.Close()

	mailer, err := notifier.New(cfg.Email)
	if err != nil {
		logger.Error("portalboxd: failed to build notifier", "err", err)
		return 1
	}

	wd := watchdog.New(cfg.Watchdog.Enabled, logger)

	sleepColor := led.Blue
	if c, err := led.ParseColor(cfg.Display.SleepColor); err == nil {
		sleepColor = c
	} else {
		logger.Warn("portalboxd: invalid display.sleep_color, using default blue", "err", err)
	}

	m := session.New(session.Config{
		Box:        box,
		Reader:     reader,
		Buttons:    buttons,
		Display:    display,
		Directory:  dir,
		Mailer:     mailer,
		Watchdog:   wd,
		Logger:     logger,
		SleepColor: sleepColor,
	})

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Info("portalboxd: signal received, requesting shutdown")
		m.Stop()
	}()

	result := m.Run()

	if !result.Identified {
		return 1
	}
	if result.Halt {
		requestOSShutdown(logger)
	}
	return 0
}

func newLogger(cfg config.Logging) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warning":
		level = slog.LevelWarn
	case "critical", "error":
		level = slog.LevelError
	default:
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func openDisplay(cfg config.Display, isZeroW bool) (led.Display, error) {
	driver := cfg.Driver
	if driver == "" || driver == "auto" {
		// The Pi Zero W variant in this fleet is wired to the
		// UART-attached NeoPixel controller; every other revision
		// drives a Dotstar strip directly over SPI.
		if isZeroW {
			driver = "neopixel"
		} else {
			driver = "dotstar"
		}
	}

	switch driver {
	case "neopixel":
		return led.OpenNeoPixelDisplay("/dev/serial0", 9600)
	case "dotstar":
		p, err := spireg.Open(ledSPIBus)
		if err != nil {
			return nil, fmt.Errorf("open led spi bus %s: %w", ledSPIBus, err)
		}
		conn, err := p.Connect(1*physic.MegaHertz, spi.Mode0, 8)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("connect led spi bus %s: %w", ledSPIBus, err)
		}
		count := cfg.LEDCount
		if count <= 0 {
			count = 15
		}
		return led.NewDotstarDisplay(conn, count), nil
	default:
		return nil, fmt.Errorf("unknown display.driver %q", driver)
	}
}

func openReader(box *hal.Box, display led.Display, logger *slog.Logger) (*rfid.Reader, error) {
	p, err := spireg.Open(rfidSPIBus)
	if err != nil {
		return nil, fmt.Errorf("open rfid spi bus %s: %w", rfidSPIBus, err)
	}
	conn, err := p.Connect(1*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("connect rfid spi bus %s: %w", rfidSPIBus, err)
	}

	onHang := func() {
		box.SetBuzzer(true)
		time.Sleep(100 * time.Millisecond)
		box.SetBuzzer(false)
		display.SetColor(led.Red)
		time.Sleep(500 * time.Millisecond)
		display.SetColor(led.Yellow)
		logger.Error("rfid: reader hang detected, waiting for external watchdog restart")
	}
	return rfid.New(conn, onHang), nil
}

