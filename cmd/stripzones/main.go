package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lumenweave/stripzones/internal/audio"
	"github.com/lumenweave/stripzones/internal/blend"
	"github.com/lumenweave/stripzones/internal/compose"
	"github.com/lumenweave/stripzones/internal/config"
	"github.com/lumenweave/stripzones/internal/diagnostics"
	"github.com/lumenweave/stripzones/internal/effect"
	"github.com/lumenweave/stripzones/internal/layout"
	"github.com/lumenweave/stripzones/internal/led"
	"github.com/lumenweave/stripzones/internal/palette"
	"github.com/lumenweave/stripzones/internal/preset"
	"github.com/lumenweave/stripzones/internal/ws"
)

func main() {
	// ---- Flags (config.yaml can override most) ----
	var (
		fps        = flag.Int("fps", 60, "target frames per second")
		brightness = flag.Float64("brightness", 0.8, "global brightness cap 0..1")
		driver     = flag.String("driver", "fake", "driver: spi | fake")
		addr       = flag.String("addr", ":8080", "HTTP listen address")
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		presetName = flag.String("preset", "", "built-in preset to load at start")
		fakeOnly   = flag.Bool("fake-only", false, "force fake output (no hardware)")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	// ---- Load config.yaml (optional) ----
	cfg := config.Default()
	if c, err := config.Load(*configPath); err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with flags")
	} else {
		cfg = c
	}

	// ---- Effective params (flags that were set win over config) ----
	eFPS, eBright, eAddr, eDriver, ePreset := cfg.FPS, cfg.Brightness, cfg.Addr, cfg.Driver, cfg.Preset
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "fps":
			eFPS = *fps
		case "brightness":
			eBright = *brightness
		case "addr":
			eAddr = *addr
		case "driver":
			eDriver = *driver
		case "preset":
			ePreset = *presetName
		}
	})
	if eFPS <= 0 {
		eFPS = 60
	}
	if eBright <= 0 || eBright > 1 {
		eBright = 0.8
	}
	if *fakeOnly {
		eDriver = "fake"
	}
	globalScale := uint8(eBright * 255)

	// ---- Registries and engine ----
	effects := effect.NewRegistry()
	effect.RegisterBuiltins(effects)
	palettes := palette.NewRegistry()
	comp := compose.New(effects, palettes, log.Logger)
	comp.SetAudioSource(audio.NullSource{})

	if ePreset != "" {
		if p, ok := preset.Find(ePreset); ok {
			if err := comp.Import(p.Snapshot); err != nil {
				log.Warn().Err(err).Str("preset", ePreset).Msg("preset rejected")
			}
		} else {
			log.Warn().Str("preset", ePreset).Msg("unknown preset")
		}
	}

	// ---- Driver selection ----
	var out led.Driver
	switch eDriver {
	case "spi":
		drv, err := led.NewSPI(cfg.Strip.Dev, layout.TotalLeds, cfg.Strip.SpeedHz, cfg.Strip.ColorOrder)
		if err != nil {
			log.Warn().Err(err).
				Str("dev", cfg.Strip.Dev).
				Int("speed_hz", cfg.Strip.SpeedHz).
				Msg("SPI init failed; falling back to fake output")
			out = &led.Fake{Log: log.Logger}
		} else {
			out = drv
		}
	default:
		if eDriver != "fake" {
			log.Warn().Str("driver", eDriver).Msg("unknown driver; using fake output")
		}
		out = &led.Fake{Log: log.Logger}
	}

	// ---- Control surface ----
	store := preset.NewStore(cfg.PresetDir)
	hub := ws.NewHub(comp, store, log.Logger)
	done := make(chan struct{})
	go hub.Run(done)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleFramesWS)
	mux.HandleFunc("/diag", hub.HandleDiagWS)
	mux.HandleFunc("/control", hub.HandleControlWS)
	mux.HandleFunc("/health", hub.HandleHealth)

	srv := &http.Server{
		Addr:         eAddr,
		Handler:      withCORS(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ---- Render loop ----
	go runRenderLoop(comp, palettes, out, hub, eFPS, uint8(cfg.Hue), globalScale, cfg.HopMS, done)
	go func() {
		log.Info().Str("addr", eAddr).Str("driver", eDriver).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server crashed")
		}
	}()

	// ---- Graceful shutdown ----
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	s := <-ch
	log.Info().Str("signal", s.String()).Msg("shutting down")

	close(done)
	_ = srv.Close()
	if closer, ok := out.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}

// runRenderLoop drives the engine at the configured frame rate and feeds
// audio hops on their own cadence. When the zone system is disabled, a
// plain whole-strip wash keeps the output alive.
func runRenderLoop(comp *compose.Composer, palettes *palette.Registry, out led.Driver, hub *ws.Hub, fps int, hue, globalScale uint8, hopMS int, done <-chan struct{}) {
	frame := make([]blend.Color, layout.TotalLeds)
	global := palettes.Resolve(0) // rainbow

	tick := time.NewTicker(time.Second / time.Duration(fps))
	defer tick.Stop()
	if hopMS <= 0 {
		hopMS = 12
	}
	hop := time.NewTicker(time.Duration(hopMS) * time.Millisecond)
	defer hop.Stop()

	report := time.NewTicker(5 * time.Second)
	defer report.Stop()
	var lastSkips uint64

	last := time.Now()
	for {
		select {
		case <-done:
			return
		case <-hop.C:
			comp.ProcessAudioHop(comp.AudioSource().Frame())
		case <-report.C:
			m := comp.Metrics()
			if m.FrameSkips > lastSkips {
				hub.PushDiag(diagnostics.Diagnostic{
					Severity: diagnostics.Warn,
					Code:     "frame_budget",
					Summary:  "render tick exceeded frame budget",
					Evidence: map[string]any{
						"skips":        m.FrameSkips - lastSkips,
						"avg_frame_ms": m.AverageFrameMS(),
					},
				})
				lastSkips = m.FrameSkips
			}
		case now := <-tick.C:
			deltaMS := uint32(now.Sub(last).Milliseconds())
			last = now
			hue += 1
			if !comp.Render(frame, global, hue, deltaMS) {
				renderWash(frame, global, hue)
			}
			if globalScale < 255 {
				for i := range frame {
					frame[i] = blend.Scale(frame[i], globalScale)
				}
			}
			if err := out.Write(frame); err != nil {
				log.Warn().Err(err).Msg("strip write failed")
			}
			hub.BroadcastFrame(frame)
		}
	}
}

// renderWash is the single-effect fallback: one palette sweep across the
// whole strip, mirrored halves ignored.
func renderWash(frame []blend.Color, p palette.Palette, hue uint8) {
	for i := range frame {
		frame[i] = p.Sample(hue + uint8(i))
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}
