// Command fxview shows a test scene through a live effect chain.
//
// Keys 1-9 and 0 toggle the effects in declaration order, adding them to
// the end of the chain the first time. Space pauses the camera, D toggles
// debug logging and Backspace clears the chain. With -preset the file is
// watched and re-applied on every save.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/gogpu/postfx"
	"github.com/gogpu/postfx/backend/kage"
	"github.com/gogpu/postfx/internal/scene"
	"github.com/gogpu/postfx/preset"
)

var effectKeys = []ebiten.Key{
	ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3, ebiten.KeyDigit4, ebiten.KeyDigit5,
	ebiten.KeyDigit6, ebiten.KeyDigit7, ebiten.KeyDigit8, ebiten.KeyDigit9, ebiten.KeyDigit0,
}

type viewer struct {
	dev      *kage.Device
	m        *postfx.Manager
	renderer *scene.Renderer
	frame    *ebiten.Image
	angle    float64
	paused   bool
	presets  chan *preset.Preset
	face     text.Face
}

func (v *viewer) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		v.paused = !v.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyD) {
		v.m.SetDebug(!v.m.Debug())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		v.m.ClearEffects()
	}
	for i, e := range postfx.Effects() {
		if i < len(effectKeys) && inpututil.IsKeyJustPressed(effectKeys[i]) {
			v.toggle(e)
		}
	}

	select {
	case p := <-v.presets:
		if err := p.Apply(v.m); err != nil {
			log.Printf("preset: %v", err)
		}
	default:
	}

	if !v.paused {
		v.angle += 0.01
	}
	return nil
}

func (v *viewer) toggle(e postfx.Effect) {
	if !v.m.HasEffect(e) {
		if err := v.m.AddEffect(e); err != nil {
			log.Printf("add %s: %v", e, err)
		}
		return
	}
	v.m.SetEffectEnabled(e, !v.m.IsEffectEnabled(e))
}

func (v *viewer) Draw(screen *ebiten.Image) {
	v.frame.WritePixels(v.renderer.Frame(v.angle).Pix)
	v.m.Process(v.dev.NewContext(), kage.Wrap(v.frame), kage.Wrap(screen))

	op := &text.DrawOptions{}
	op.GeoM.Translate(8, 6)
	op.LineSpacing = 16
	op.ColorScale.ScaleWithColor(color.White)
	text.Draw(screen, v.status(), v.face, op)
}

func (v *viewer) status() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%.0f fps  debug=%v\n", ebiten.ActualFPS(), v.m.Debug())
	for i, e := range postfx.Effects() {
		mark := " "
		switch {
		case v.m.IsEffectEnabled(e):
			mark = "*"
		case v.m.HasEffect(e):
			mark = "-"
		}
		fmt.Fprintf(&b, "%d [%s] %s\n", (i+1)%10, mark, e)
	}
	return b.String()
}

func (v *viewer) Layout(int, int) (int, int) {
	return v.frame.Bounds().Dx(), v.frame.Bounds().Dy()
}

func main() {
	var (
		sceneName = flag.String("scene", "shapes", "test scene ("+strings.Join(scene.Names(), ", ")+")")
		width     = flag.Int("width", 960, "width")
		height    = flag.Int("height", 540, "height")
		effects   = flag.String("effects", "bloom,tone_mapping,vignette", "initial effect chain")
		presetArg = flag.String("preset", "", "TOML or YAML preset to apply and watch")
	)
	flag.Parse()

	postfx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))

	r, err := scene.NewRenderer(*sceneName, *width, *height)
	if err != nil {
		log.Fatal(err)
	}

	var chain []postfx.Effect
	for _, name := range strings.Split(*effects, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		e, err := postfx.ParseEffect(name)
		if err != nil {
			log.Fatal(err)
		}
		chain = append(chain, e)
	}

	fonts, err := text.NewGoTextFaceSource(bytes.NewReader(gomono.TTF))
	if err != nil {
		log.Fatal(err)
	}

	dev := kage.NewDevice()
	m := postfx.NewManager(postfx.WithEffects(chain...))
	if err := m.Initialize(dev, *width, *height); err != nil {
		log.Fatal(err)
	}
	defer m.Shutdown()

	v := &viewer{
		dev:      dev,
		m:        m,
		renderer: r,
		frame:    ebiten.NewImage(*width, *height),
		presets:  make(chan *preset.Preset, 1),
		face:     &text.GoTextFace{Source: fonts, Size: 12},
	}

	if *presetArg != "" {
		p, err := preset.Load(*presetArg)
		if err != nil {
			log.Fatal(err)
		}
		if err := p.Apply(m); err != nil {
			log.Print(err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			err := preset.Watch(ctx, *presetArg, func(p *preset.Preset) {
				select {
				case v.presets <- p:
				default:
				}
			})
			if err != nil {
				log.Printf("watch: %v", err)
			}
		}()
	}

	ebiten.SetWindowSize(*width, *height)
	ebiten.SetWindowTitle("fxview: " + r.Name())
	if err := ebiten.RunGame(v); err != nil {
		log.Fatal(err)
	}
}
