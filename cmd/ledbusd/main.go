package main

import (
	"context"
	"flag"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/lumentide/ledbus/internal/bus"
	"github.com/lumentide/ledbus/internal/config"
	"github.com/lumentide/ledbus/internal/diagnostics"
	"github.com/lumentide/ledbus/internal/discovery"
	"github.com/lumentide/ledbus/internal/drivers/nrz"
	"github.com/lumentide/ledbus/internal/drivers/spibus"
	"github.com/lumentide/ledbus/internal/drivers/stub"
	"github.com/lumentide/ledbus/internal/drivers/term"
	"github.com/lumentide/ledbus/internal/engine"
	"github.com/lumentide/ledbus/internal/telemetry"
	"github.com/lumentide/ledbus/internal/validation"
)

func main() {
	// ---- Flags (config.yaml can override most) ----
	var (
		configPath = flag.String("config", "ledbus.yaml", "path to ledbus.yaml")
		addr       = flag.String("addr", "", "HTTP listen address (overrides config)")
		fps        = flag.Int("fps", 0, "target frames per second (overrides config)")
		logLevel   = flag.String("log-level", "", "trace|debug|info|warn|error (overrides config)")
		demo       = flag.String("demo", "", "demo effect: rainbow | sweep | channels | off (overrides config)")
		headless   = flag.Bool("headless", false, "skip hardware drivers, preview on the terminal")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	// ---- Load ledbus.yaml (optional) ----
	cfg := config.Default()
	if c, err := config.Load(*configPath); err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with defaults")
	} else {
		cfg = c
	}

	// ---- Effective params (flags override config) ----
	eAddr, eFPS, eLevel, eDemo := cfg.Listen, cfg.FPS, cfg.LogLevel, cfg.Demo
	if *addr != "" {
		eAddr = *addr
	}
	if *fps > 0 {
		eFPS = *fps
	}
	if *logLevel != "" {
		eLevel = *logLevel
	}
	if *demo != "" {
		eDemo = *demo
	}

	if eLevel != "" {
		if lvl, err := zerolog.ParseLevel(eLevel); err == nil {
			zerolog.SetGlobalLevel(lvl)
		} else {
			log.Warn().Str("level", eLevel).Msg("unknown log level; keeping default")
		}
	}

	// ---- Hardware ----
	if _, err := host.Init(); err != nil {
		log.Warn().Err(err).Msg("periph host init failed; hardware ports unavailable")
	}

	mgr := bus.NewManager(log.Logger)
	closers := registerDrivers(mgr, cfg.Drivers, *headless)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	if cfg.ExclusiveDriver != "" {
		if !mgr.SetExclusiveDriver(cfg.ExclusiveDriver) {
			log.Warn().Str("driver", cfg.ExclusiveDriver).Msg("exclusive driver not matched")
		}
	}

	// ---- Telemetry & validation ----
	state := telemetry.New(mgr, log.Logger)
	mgr.AddChannelListener(state)

	report := validation.Check(mgr, cfg.ExpectDrivers)
	report.Log(log.Logger)
	for _, name := range report.Missing {
		state.PushDiag(diagnostics.DriverMissing(name))
	}

	// ---- Channels ----
	channels := buildChannels(mgr, cfg.Channels, state)
	if len(channels) == 0 {
		log.Fatal().Msg("no usable channels configured")
	}

	// ---- Frame lifecycle: manager first, telemetry reads after it ----
	events := &engine.Events{}
	events.AddListener(mgr)
	events.AddListener(state)

	loop := &engine.Loop{
		FPS:    eFPS,
		Events: events,
		Render: renderFunc(eDemo, channels),
		Log:    log.Logger,
	}

	// ---- HTTP routes ----
	mux := http.NewServeMux()
	mux.HandleFunc("/drivers", state.HandleDriversWS)
	mux.HandleFunc("/diag", state.HandleDiagWS)
	mux.HandleFunc("/health", state.HandleHealth)

	srv := &http.Server{
		Addr:         eAddr,
		Handler:      withCORS(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.MDNS {
		if svc, err := discovery.Advertise("ledbus", listenPort(eAddr), []string{"api=/health"}, log.Logger); err != nil {
			log.Warn().Err(err).Msg("mdns advertise failed")
		} else {
			defer svc.Close()
		}
	}

	// ---- Run render loop & server ----
	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("render loop exited")
		}
	}()
	go func() {
		log.Info().Str("addr", eAddr).Int("fps", eFPS).Str("demo", eDemo).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server crashed")
		}
	}()

	// ---- Graceful shutdown ----
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	s := <-ch
	log.Info().Str("signal", s.String()).Msg("shutting down")

	cancel()
	select {
	case <-loopDone:
	case <-time.After(time.Second):
	}
	mgr.WaitForReady(bus.DefaultWaitTimeout)
	mgr.Reset()
	_ = srv.Close()
}

func registerDrivers(mgr *bus.Manager, defs []config.Driver, headless bool) []io.Closer {
	var closers []io.Closer
	for _, dc := range defs {
		switch dc.Kind {
		case "spi":
			if headless {
				continue
			}
			port, err := spireg.Open(dc.Port)
			if err != nil {
				log.Warn().Err(err).Str("port", dc.Port).Msg("SPI port open failed; skipping driver")
				continue
			}
			drv, err := spibus.New(port, physic.Frequency(dc.SpeedHz)*physic.Hertz, log.Logger)
			if err != nil {
				_ = port.Close()
				log.Warn().Err(err).Msg("SPI driver init failed; skipping")
				continue
			}
			mgr.AddDriver(dc.Priority, drv)
			closers = append(closers, drv)

		case "nrz":
			if headless {
				continue
			}
			port, err := spireg.Open(dc.Port)
			if err != nil {
				log.Warn().Err(err).Str("port", dc.Port).Msg("NRZ port open failed; skipping driver")
				continue
			}
			drv, err := nrz.New(port, dc.Pixels, log.Logger)
			if err != nil {
				_ = port.Close()
				log.Warn().Err(err).Msg("NRZ driver init failed; skipping")
				continue
			}
			mgr.AddDriver(dc.Priority, drv)
			closers = append(closers, drv, port)

		case "term":
			mgr.AddDriver(dc.Priority, term.New(dc.Width, log.Logger))

		case "stub":
			mgr.AddDriver(dc.Priority, stub.New(log.Logger))

		default:
			log.Warn().Str("kind", dc.Kind).Msg("unknown driver kind")
		}
	}

	if mgr.DriverCount() == 0 {
		log.Warn().Msg("no drivers came up; previewing on the terminal")
		mgr.AddDriver(0, term.New(0, log.Logger))
	}
	return closers
}

func buildChannels(mgr *bus.Manager, defs []config.Channel, state *telemetry.State) []*bus.Channel {
	var out []*bus.Channel
	for _, cc := range defs {
		v, err := cc.Variant()
		if err != nil {
			log.Error().Err(err).Msg("channel rejected")
			state.PushDiag(diagnostics.ConfigProblem(err.Error()))
			continue
		}
		enc, err := cc.Encoding(v)
		if err != nil {
			log.Error().Err(err).Msg("channel rejected")
			state.PushDiag(diagnostics.ConfigProblem(err.Error()))
			continue
		}
		ch := bus.NewChannel(mgr, bus.ChannelConfig{
			Name:     cc.Name,
			Count:    cc.Count,
			Chipset:  v,
			Affinity: cc.Affinity,
			Encoding: enc,
		})
		log.Info().Str("channel", ch.Name()).Int("count", ch.Len()).Stringer("chipset", v).Msg("channel ready")
		out = append(out, ch)
	}
	return out
}

func listenPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 8080
	}
	p, err := strconv.Atoi(portStr)
	if err != nil {
		return 8080
	}
	return p
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
