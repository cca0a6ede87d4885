package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modtap/smtd"
	"github.com/modtap/smtd/hostsim"
	"github.com/modtap/smtd/internal/behavior"
	"github.com/modtap/smtd/internal/logging"
)

func main() {
	var (
		keymapPath = flag.String("keymap", "", "Path to a TOML keymap file (empty uses the built-in demo layout)")
		verbose    = flag.Bool("v", false, "Verbose output")
		queueCap   = flag.Int("queue-capacity", 0, "Active queue capacity (0 uses the engine default)")
		propagate  = flag.Bool("propagate-mods", false, "Enable global mod propagation to still-open taps")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	table, err := loadTable(*keymapPath)
	if err != nil {
		logger.Error("failed to load keymap", "error", err)
		os.Exit(1)
	}

	host := hostsim.New(os.Stdout)

	params := smtd.DefaultEngineParams()
	params.Table = table
	params.GlobalModPropagation = *propagate
	if *queueCap > 0 {
		params.QueueCapacity = *queueCap
	}

	engine, err := smtd.NewEngine(params, host, &smtd.Options{
		Logger:          logger,
		Observer:        smtd.NewMetrics(),
		HistoryCapacity: 256,
	})
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	logger.Info("smtd demo engine ready", "queue_capacity", params.QueueCapacity, "propagate_mods", params.GlobalModPropagation)
	fmt.Println("Running the built-in demonstration script; Ctrl+C to exit early.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		os.Exit(0)
	}()

	runDemoScript(engine, host)
}

// loadTable loads a keymap from path, or the built-in demo layout when path
// is empty: keycode 1 is a mod-tap with mod mask 0x01 and keycode 2 is a
// layer-tap to layer 1.
func loadTable(path string) (*behavior.Table, error) {
	if path == "" {
		return behavior.LoadTOMLString(`
[keys.1]
kind = "MT"
mod_mask = 1

[keys.2]
kind = "LT"
layer = 1
`)
	}
	return behavior.LoadTOMLFile(path)
}

// runDemoScript feeds a short, fixed sequence of key events through engine
// so a reader can see smart-key resolution happen without needing real
// keyboard hardware wired up.
func runDemoScript(engine *smtd.Engine, host *hostsim.Host) {
	mt := smtd.KeyPos{Row: 0, Col: 0}
	plain := smtd.KeyPos{Row: 0, Col: 2}

	engine.Process(1, mt, true)
	time.Sleep(250 * time.Millisecond) // past TAP_TIMEOUT: MT resolves to a held modifier
	engine.Process(3, plain, true)
	engine.Process(3, plain, false)
	engine.Process(1, mt, false)
	time.Sleep(100 * time.Millisecond) // let the release/follow timers settle

	snap := engine.History()
	fmt.Printf("\n%d actions recorded; final mods=%#02x layer=%d\n",
		len(snap), host.GetMods(), host.GetLayer())
}
