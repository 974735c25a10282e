package main

import (
	"context"
	"image"
	"image/color"
	"log"

	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.org/x/sync/errgroup"

	"github.com/mjrussell/dmgcore/internal/machine"
	"github.com/mjrussell/dmgcore/internal/mmu"
	"github.com/mjrussell/dmgcore/internal/ppu"
)

// app is the ebiten.Game implementation: it owns the window, the pixel
// texture, keyboard→joypad translation, and the one save-state slot the
// reference front-end supports. Grounded on the teacher's ui.App/ebitenapp.go
// Update/Draw/Layout shape, trimmed of its menu/settings system — out of
// scope for a reference front-end whose contract (spec §6) is just "window,
// keys, audio device".
type app struct {
	cfg Config
	m   *machine.Machine
	tex *ebiten.Image

	fast bool

	savedState []byte

	player *oto.Player

	eg     *errgroup.Group
	egCtx  context.Context
	cancel context.CancelFunc
}

type buttonKey struct {
	key    ebiten.Key
	button byte
}

var buttonMap = []buttonKey{
	{ebiten.KeyArrowRight, mmu.ButtonRight},
	{ebiten.KeyArrowLeft, mmu.ButtonLeft},
	{ebiten.KeyArrowUp, mmu.ButtonUp},
	{ebiten.KeyArrowDown, mmu.ButtonDown},
	{ebiten.KeyZ, mmu.ButtonA},
	{ebiten.KeyX, mmu.ButtonB},
	{ebiten.KeyEnter, mmu.ButtonStart},
	{ebiten.KeyShiftRight, mmu.ButtonSelect},
}

func newApp(cfg Config, m *machine.Machine) *app {
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(ppu.ScreenWidth*cfg.Scale, ppu.ScreenHeight*cfg.Scale)
	a := &app{cfg: cfg, m: m, tex: ebiten.NewImage(ppu.ScreenWidth, ppu.ScreenHeight)}
	a.fast = cfg.FastForward

	ctx, cancel := context.WithCancel(context.Background())
	eg, egCtx := errgroup.WithContext(ctx)
	a.eg, a.egCtx, a.cancel = eg, egCtx, cancel

	player, _, err := openAudio(m)
	if err != nil {
		log.Printf("audio disabled: %v", err)
	} else {
		a.player = player
	}

	return a
}

func (a *app) Update() error {
	for _, bk := range buttonMap {
		if ebiten.IsKeyPressed(bk.key) {
			a.m.PushButton(bk.button)
		} else {
			a.m.ReleaseButton(bk.button)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		a.fast = !a.fast
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		a.savedState = a.m.SaveState()
		log.Printf("save state captured (%d bytes)", len(a.savedState))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) && a.savedState != nil {
		if err := a.m.LoadState(a.savedState, nil); err != nil {
			log.Printf("load state: %v", err)
		}
	}

	steps := 1
	if a.fast {
		steps = 4
	}
	for s := 0; s < steps; s++ {
		a.stepOneFrame()
	}
	return nil
}

// stepOneFrame advances the machine by one frame's worth of master cycles
// (at least 70224, summed from Machine.Step's per-instruction counts); it
// does not align to the vertical-blank boundary.
func (a *app) stepOneFrame() {
	const cyclesPerFrame = 70224 // spec §4.3: 154 lines * 456 dots
	spent := 0
	for spent < cyclesPerFrame {
		spent += a.m.Step()
	}
}

func (a *app) Draw(screen *ebiten.Image) {
	fb := a.m.Framebuffer()
	img := image.NewRGBA(image.Rect(0, 0, ppu.ScreenWidth, ppu.ScreenHeight))
	for y := 0; y < ppu.ScreenHeight; y++ {
		for x := 0; x < ppu.ScreenWidth; x++ {
			px := fb[y][x]
			img.Set(x, y, color.RGBA{
				R: byte(px >> 24), G: byte(px >> 16), B: byte(px >> 8), A: byte(px),
			})
		}
	}
	a.tex.WritePixels(img.Pix)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(a.cfg.Scale), float64(a.cfg.Scale))
	screen.DrawImage(a.tex, op)
}

func (a *app) Layout(outsideWidth, outsideHeight int) (int, int) {
	return ppu.ScreenWidth * a.cfg.Scale, ppu.ScreenHeight * a.cfg.Scale
}

// Run supervises the render loop and the audio player as a pair of
// goroutines under one errgroup, the direct replacement for the teacher's
// bare channel juggling in ebitenapp.go: either one exiting (a window close,
// an audio device error) tears down the other via context cancellation.
func (a *app) Run() error {
	a.eg.Go(func() error {
		err := ebiten.RunGame(a)
		a.cancel()
		return err
	})
	a.eg.Go(func() error {
		if a.player == nil {
			<-a.egCtx.Done()
			return nil
		}
		a.player.Play()
		<-a.egCtx.Done()
		return a.player.Close()
	})
	return a.eg.Wait()
}
