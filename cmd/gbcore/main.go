// Command gbcore is the reference windowed front-end: an ebiten video/input
// loop plus an oto audio player, wired to the internal/machine core. It is
// deliberately thin — the core does the emulating, this just supplies the
// window, keys, and sound card the core's contract keeps out of scope.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mjrussell/dmgcore/internal/cart"
	"github.com/mjrussell/dmgcore/internal/machine"
)

// Config holds the window/runtime settings parsed from CLI flags, mirroring
// the teacher's ui.Config shape.
type Config struct {
	Title       string
	Scale       int
	FastForward bool
}

type cliFlags struct {
	romPath     string
	bootromFile string
	saveFile    string
	info        bool
	debug       bool
	fastForward bool
	scale       int
	title       string
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.bootromFile, "bootrom-file", "", "optional DMG boot ROM")
	flag.StringVar(&f.saveFile, "save-file", "", "battery-RAM save path (defaults to ROM path with .sav)")
	flag.BoolVar(&f.info, "info", false, "print cartridge header info and exit")
	flag.BoolVar(&f.debug, "debug", false, "log CPU registers before each instruction")
	flag.BoolVar(&f.fastForward, "fast-forward", false, "start in fast-forward (toggle with Tab)")
	flag.IntVar(&f.scale, "scale", 3, "window scale")
	flag.StringVar(&f.title, "title", "gbcore", "window title")
	flag.Parse()
	f.romPath = flag.Arg(0)
	return f
}

func mustRead(path string) []byte {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return b
}

func main() {
	f := parseFlags()
	if f.romPath == "" {
		fmt.Fprintln(os.Stderr, "usage: gbcore [flags] <rom.gb>")
		os.Exit(2)
	}
	rom := mustRead(f.romPath)

	if f.info {
		h, err := cart.ParseHeader(rom)
		if err != nil {
			log.Fatalf("parse header: %v", err)
		}
		fmt.Printf("title=%q cartType=0x%02X romBanks=%d ramBytes=%d battery=%v rtc=%v\n",
			h.Title, h.CartType, h.ROMBanks, h.RAMSizeBytes, h.HasBattery, h.HasRTC)
		return
	}

	boot := mustRead(f.bootromFile)

	savePath := f.saveFile
	if savePath == "" {
		savePath = strings.TrimSuffix(f.romPath, ".gb") + ".sav"
	}
	save := mustRead(savePath)

	m, err := machine.New(rom, boot, save, machine.Config{Trace: f.debug})
	if err != nil {
		log.Fatalf("load cartridge: %v", err)
	}

	cfg := Config{Title: f.title, Scale: f.scale, FastForward: f.fastForward}
	a := newApp(cfg, m)
	if err := a.Run(); err != nil {
		log.Printf("run: %v", err)
	}

	if data := m.SaveData(); data != nil {
		if err := os.WriteFile(savePath, data, 0644); err != nil {
			log.Printf("write %s: %v", savePath, err)
		} else {
			log.Printf("wrote %s", savePath)
		}
	}
}
