// ABOUTME: Entry point for the Lyra streaming music player
// ABOUTME: Parses CLI flags, wires the controller and handles signals
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/lyrastream/lyra-go/internal/api"
	"github.com/lyrastream/lyra-go/internal/auth"
	"github.com/lyrastream/lyra-go/internal/config"
	"github.com/lyrastream/lyra-go/internal/display"
	"github.com/lyrastream/lyra-go/internal/music"
	"github.com/lyrastream/lyra-go/internal/output"
	"github.com/lyrastream/lyra-go/internal/player"
	"github.com/lyrastream/lyra-go/internal/version"
)

var (
	configPath  = flag.String("config", "lyra.yaml", "Config file path")
	songName    = flag.String("song", "", "Song to look up through the catalog")
	streamURL   = flag.String("url", "", "Direct stream URL (skips the catalog)")
	volume      = flag.Int("volume", -1, "Playback volume 0-100 (overrides config)")
	noLyrics    = flag.Bool("no-lyrics", false, "Disable lyric download and display")
	logLevel    = flag.String("log-level", "", "Log level (overrides config)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}
	if *songName == "" && *streamURL == "" {
		fmt.Fprintln(os.Stderr, "usage: lyra -song <name> | -url <stream url>")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *volume >= 0 {
		cfg.Audio.Volume = *volume
	}
	if *noLyrics {
		cfg.Audio.Lyrics = false
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	log := newLogger(cfg.Log.Level)
	log.Info().Str("version", version.Version).Msg("lyra starting")

	sink, err := output.New(cfg.Audio.SampleRate)
	if err != nil {
		log.Fatal().Err(err).Msg("audio device unavailable")
	}
	defer sink.Close()
	sink.SetVolume(cfg.Audio.Volume)

	device := auth.Device{
		MAC:    cfg.Device.MAC,
		ChipID: cfg.Device.ChipID,
		Secret: cfg.Device.Secret,
	}

	var catalog *api.Client
	if cfg.Service.BaseURL != "" {
		catalog = api.New(cfg.Service.BaseURL, device, log)
	}
	if *songName != "" && catalog == nil {
		log.Fatal().Msg("catalog lookup needs service.base_url in the config")
	}

	ctrl := music.NewController(music.Options{
		Catalog:     catalog,
		Sink:        sink,
		Device:      device,
		Display:     display.NewConsole(os.Stdout),
		FetchLyrics: cfg.Audio.Lyrics,
		Log:         log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *songName != "" {
		err = ctrl.Start(ctx, *songName)
	} else {
		err = ctrl.StartURL(ctx, *streamURL, "", *streamURL)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("playback failed to start")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-sigChan:
			log.Info().Msg("shutdown signal received")
			ctrl.Stop()
			return
		case <-ticker.C:
			if ctrl.State() == player.StateIdle {
				log.Info().Msg("playback finished")
				return
			}
		}
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().Logger()
}
