package main

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/mcdev12/globepath/go/internal/geo"
	"github.com/mcdev12/globepath/go/internal/globe"
	"github.com/mcdev12/globepath/go/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type cli struct {
	Server    string        `help:"Relay WebSocket URL." default:"ws://127.0.0.1:8000/ws" env:"GLOBE_SERVER"`
	Heartbeat time.Duration `help:"Expected relay heartbeat period." default:"1s"`
	Timeout   time.Duration `help:"Watchdog window before going Offline." default:"2s"`
	Width     int           `help:"Viewport width in pixels." default:"1280"`
	Height    int           `help:"Viewport height in pixels." default:"720"`
	GeoJSON   string        `name:"geojson" help:"Write the path as GeoJSON to this file on exit." type:"path"`
	LogLevel  string        `help:"Log level." default:"info" env:"LOG_LEVEL"`
}

const usage = `commands:
  click X Y          secondary click at screen position
  shift-click X Y    shift + secondary click (reset path)
  pick LON LAT [H]   add a position in degrees
  save               submit the path
  reset              clear the path
  status             show connection state and path
  quit`

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	var args cli
	kong.Parse(&args,
		kong.Name("globe"),
		kong.Description("Draw a path on the globe and save it through the relay."),
	)

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(args.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	config := globe.DefaultClientConfig()
	config.ServerURL = args.Server
	config.HeartbeatInterval = args.Heartbeat
	config.WatchdogTimeout = args.Timeout
	if err := config.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid client config")
	}

	camera := geo.DefaultCamera(args.Width, args.Height)
	if err := camera.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid viewport")
	}

	tracker, err := globe.NewTracker(clockwork.NewRealClock(), config.TrackerConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create tracker")
	}
	defer tracker.Close()

	unsubscribe := tracker.Subscribe(func(tr globe.Transition) {
		log.Info().
			Str("from", string(tr.From)).
			Str("to", string(tr.To)).
			Str("reason", tr.Reason).
			Msg("connection state changed")
	})
	defer unsubscribe()

	client := globe.NewClient(config, tracker)
	path := globe.NewPathAccumulator(geo.NewScreenPicker(camera))
	session := globe.NewSession(tracker, path, client)

	bus := globe.NewInputBus()
	if err := session.Mount(bus); err != nil {
		log.Fatal().Err(err).Msg("failed to mount session")
	}
	defer session.Unmount()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// A failed dial leaves the tracker Offline; there is no automatic retry.
	if err := client.Connect(ctx); err != nil {
		log.Error().Err(err).Msg("relay unreachable")
	}
	defer client.Close()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	fmt.Fprintln(os.Stderr, usage)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if quit := run(line, bus, session); quit {
				break loop
			}
		}
	}

	if args.GeoJSON != "" {
		if err := writeGeoJSON(args.GeoJSON, path); err != nil {
			log.Error().Err(err).Str("file", args.GeoJSON).Msg("failed to write geojson")
		}
	}
}

func run(line string, bus *globe.InputBus, session *globe.Session) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "click", "shift-click":
		x, y, err := parsePair(fields[1:])
		if err != nil {
			log.Warn().Err(err).Msg("bad click")
			return false
		}
		before := session.Path().Len()
		bus.Publish(globe.InputEvent{
			Kind:  globe.InputSecondaryClick,
			X:     x,
			Y:     y,
			Shift: fields[0] == "shift-click",
		})
		if fields[0] == "click" && session.Path().Len() == before {
			log.Info().Float64("x", x).Float64("y", y).Msg("missed the globe")
		}
	case "pick":
		lon, lat, err := parsePair(fields[1:])
		if err != nil {
			log.Warn().Err(err).Msg("bad pick")
			return false
		}
		height := 0.0
		if len(fields) > 3 {
			height, _ = strconv.ParseFloat(fields[3], 64)
		}
		point := session.Path().AddPosition(models.Cartographic{
			Longitude: lon * math.Pi / 180,
			Latitude:  lat * math.Pi / 180,
			Height:    height,
		})
		log.Info().Float64("x", point.X).Float64("y", point.Y).Float64("z", point.Z).Msg("point added")
	case "save":
		if err := session.Save(); err != nil {
			log.Warn().Err(err).Msg("path not saved")
		} else {
			log.Info().Int("points", session.Path().Len()).Msg("path submitted")
		}
	case "reset":
		session.Path().Reset()
	case "status":
		ind := session.Indicator()
		fmt.Printf("%s (%s) points=%d save_enabled=%t\n", ind.Label, ind.Color, session.Path().Len(), ind.SaveEnabled)
		for _, e := range session.Path().Entities() {
			fmt.Printf("  %s %s\n", e.Name, e.Description)
		}
	case "quit", "exit":
		return true
	default:
		fmt.Fprintln(os.Stderr, usage)
	}
	return false
}

func parsePair(fields []string) (float64, float64, error) {
	if len(fields) < 2 {
		return 0, 0, fmt.Errorf("expected two numbers")
	}
	a, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func writeGeoJSON(file string, path *globe.PathAccumulator) error {
	data, err := path.GeoJSON().MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal geojson: %w", err)
	}
	return os.WriteFile(file, data, 0o644)
}
