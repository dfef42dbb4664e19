// Command registerbox is the one-shot registration utility behind
// directory.Register: it inserts a new "out of service" equipment row for a given
// MAC address, so a box can be assigned an equipment profile later through
// whatever administrative tool manages the rest of the directory schema.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/thenewsboston-makerspace/portalboxd/internal/config"
	"github.com/thenewsboston-makerspace/portalboxd/internal/directory"
)

var cli struct {
	Config string `arg:"" optional:"" default:"config.ini" help:"Path to the configuration INI file."`
	MAC    string `arg:"" required:"" help:"MAC address of the box to register, colon-separated lower-case."`
}

func main() {
	kong.Parse(&cli, kong.Name("registerbox"), kong.Description("Register a new portal box with the directory"))
	os.Exit(run(cli.Config, cli.MAC))
}

func run(configPath, mac string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "registerbox: %v\n", err)
		return 1
	}

	logger := slog.Default()
	mode := directory.PerCall
	if cfg.Database.UsePersistentConnection {
		mode = directory.Persistent
	}
	dir, err := directory.Open(cfg.Database, mode, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "registerbox: failed to connect to directory: %v\n", err)
		return 1
	}
	defer dir.Close()

	if dir.IsRegistered(mac) {
		fmt.Printf("registerbox: %s is already registered\n", mac)
		return 0
	}

	if !dir.Register(mac) {
		fmt.Fprintf(os.Stderr, "registerbox: failed to register %s\n", mac)
		return 1
	}
	fmt.Printf("registerbox: %s registered as out of service; assign an equipment profile to bring it into service\n", mac)
	return 0
}
