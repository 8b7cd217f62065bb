// Command postfx runs an effect chain over an image file or a rendered
// test scene and writes the result as PNG.
//
//	postfx -in photo.jpg -effects bloom,tone_mapping,vignette -out out.png
//	postfx -scene shapes -preset cinematic.toml -watch -out live.png
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/gogpu/postfx"
	"github.com/gogpu/postfx/backend"
	_ "github.com/gogpu/postfx/backend/native"
	_ "github.com/gogpu/postfx/backend/software"
	"github.com/gogpu/postfx/internal/scene"
	"github.com/gogpu/postfx/preset"
)

type config struct {
	in, out string
	effects string
	preset  string
	backend string
	scene   string
	width   int
	height  int
	debug   bool
	watch   bool
	list    bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.in, "in", "", "input image (PNG, JPEG, GIF, BMP, TIFF or WebP)")
	flag.StringVar(&cfg.out, "out", "postfx.png", "output PNG file")
	flag.StringVar(&cfg.effects, "effects", "", "comma separated effect chain, e.g. bloom,tone_mapping")
	flag.StringVar(&cfg.preset, "preset", "", "TOML or YAML preset file")
	flag.StringVar(&cfg.backend, "backend", "", "backend name (default: best available)")
	flag.StringVar(&cfg.scene, "scene", "shapes", "test scene rendered when -in is empty")
	flag.IntVar(&cfg.width, "width", 0, "output width (default: input width, 640 for scenes)")
	flag.IntVar(&cfg.height, "height", 0, "output height (default: input height, 360 for scenes)")
	flag.BoolVar(&cfg.debug, "debug", false, "log every chain step")
	flag.BoolVar(&cfg.watch, "watch", false, "re-run whenever the preset file changes")
	flag.BoolVar(&cfg.list, "list", false, "list test scenes and effects, then exit")
	flag.Parse()

	if cfg.list {
		fmt.Println("scenes: ", strings.Join(scene.Names(), ", "))
		fmt.Println("effects:", strings.Join(effectNames(), ", "))
		fmt.Println("backends:", strings.Join(backend.Available(), ", "))
		return
	}

	level := slog.LevelInfo
	if cfg.debug {
		level = slog.LevelDebug
	}
	postfx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("postfx: %v", err)
	}
}

func run(ctx context.Context, cfg config) error {
	if cfg.watch && cfg.preset == "" {
		return errors.New("-watch needs -preset")
	}

	src, err := loadSource(cfg)
	if err != nil {
		return err
	}

	b, err := openBackend(cfg.backend)
	if err != nil {
		return err
	}
	defer b.Close()
	log.Printf("backend %s, %dx%d", b.Name(), src.Bounds().Dx(), src.Bounds().Dy())

	chain, err := parseEffects(cfg.effects)
	if err != nil {
		return err
	}
	m := postfx.NewManager(postfx.WithEffects(chain...), postfx.WithDebug(cfg.debug))
	if err := m.Initialize(b, src.Bounds().Dx(), src.Bounds().Dy()); err != nil {
		return err
	}
	defer m.Shutdown()

	if cfg.preset != "" {
		p, err := preset.Load(cfg.preset)
		if err != nil {
			return err
		}
		if err := p.Apply(m); err != nil {
			return err
		}
	}

	if err := render(b, m, src, cfg.out); err != nil {
		return err
	}
	if !cfg.watch {
		return nil
	}

	log.Printf("watching %s, interrupt to stop", cfg.preset)
	return preset.Watch(ctx, cfg.preset, func(p *preset.Preset) {
		if err := p.Apply(m); err != nil {
			log.Printf("preset: %v", err)
		}
		if err := render(b, m, src, cfg.out); err != nil {
			log.Printf("render: %v", err)
		}
	})
}

func openBackend(name string) (backend.Backend, error) {
	if name == "" {
		return backend.Default()
	}
	return backend.Get(name)
}

func loadSource(cfg config) (image.Image, error) {
	if cfg.in == "" {
		w, h := cfg.width, cfg.height
		if w == 0 {
			w = 640
		}
		if h == 0 {
			h = 360
		}
		return scene.Render(cfg.scene, w, h)
	}
	img, err := decodeFile(cfg.in)
	if err != nil {
		return nil, err
	}
	return fit(img, cfg.width, cfg.height), nil
}

func parseEffects(s string) ([]postfx.Effect, error) {
	var chain []postfx.Effect
	for _, name := range strings.Split(s, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		e, err := postfx.ParseEffect(name)
		if err != nil {
			return nil, err
		}
		chain = append(chain, e)
	}
	return chain, nil
}

func effectNames() []string {
	var names []string
	for _, e := range postfx.Effects() {
		names = append(names, e.String())
	}
	return names
}

// render runs one frame through the chain and writes it to path.
func render(b backend.Backend, m *postfx.Manager, src image.Image, path string) error {
	in, err := b.UploadImage(src)
	if err != nil {
		return err
	}
	defer in.Release()

	out, err := b.CreateSurface(in.Width(), in.Height(), postfx.FormatRGBA8)
	if err != nil {
		return err
	}
	defer out.Release()

	ctx := b.NewContext()
	if r, ok := ctx.(postfx.Releaser); ok {
		defer r.Release()
	}
	m.Process(ctx, in, out)

	img, err := b.ReadImage(out)
	if err != nil {
		return err
	}
	if err := encodeFile(path, img); err != nil {
		return err
	}
	st := m.Stats()
	log.Printf("wrote %s (%d passes applied, %d skipped)", path, st.Applied, st.Skipped)
	return nil
}
