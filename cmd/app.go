package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"StemDeck/core/auth"
	"StemDeck/core/backend"
	"StemDeck/core/blob"
	"StemDeck/core/library"
	"StemDeck/core/playback"
	"StemDeck/core/session"
	"StemDeck/core/voice"
	"StemDeck/logger"
	"StemDeck/storage"
)

// app is one client session assembled from config.
type app struct {
	kv      storage.KVStore
	client  *backend.Client
	blobs   *blob.Registry
	lib     *library.Engine
	player  *playback.Engine
	voice   *voice.Pipeline
	session *session.Session
}

type appOptions struct {
	voice      bool
	voiceHooks voice.Hooks
	hooks      session.Hooks
}

// statusPrinter is the default session status hook for commands.
func statusPrinter(msg string) {
	fmt.Println(msg)
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	kv, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	client := backend.NewClient(cfg.APIBaseURL,
		backend.WithRateLimit(cfg.APIRateLimit),
		backend.WithVerifier(backend.VerifierFor(cfg.BotSiteKey, cfg.BotToken)),
	)

	blobs, err := blob.NewRegistry("")
	if err != nil {
		kv.Close()
		return nil, err
	}

	libOpts := library.Options{
		Backend:        client,
		Store:          library.NewTrackStore(kv, cfg.StoreKey),
		Blobs:          blobs,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		RequestTimeout: 2 * time.Minute,
	}
	if storage.MinioConfigured(cfg) {
		signer, err := storage.NewMinioSigner(cfg)
		if err != nil {
			logger.Warn("MinIO signer unavailable, falling back to /presigned-url", logger.ErrorField(err))
		} else {
			libOpts.Signer = signer
		}
	}
	lib := library.NewEngine(libOpts)

	player := playback.NewEngine(
		playback.NewFFplayOutput(cfg.FFplayPath, cfg.FFprobePath),
		&playback.Resolver{Blobs: blobs, Signer: lib, Cache: client},
	)

	a := &app{kv: kv, client: client, blobs: blobs, lib: lib, player: player}

	who := identityFromConfig()
	if opts.voice {
		header := http.Header{}
		if who.Token != "" {
			header.Set("Authorization", "Bearer "+who.Token)
		}
		a.voice = voice.NewPipeline(voice.Options{
			URL:    cfg.TranscribeURL,
			Header: header,
			Microphone: &voice.FFmpegMicrophone{
				Path:       cfg.FFmpegPath,
				Format:     cfg.MicFormat,
				Device:     cfg.MicDevice,
				SampleRate: cfg.VoiceSampleRate,
			},
			SampleRate:     cfg.VoiceSampleRate,
			Chunk:          cfg.VoiceChunk,
			Inactivity:     cfg.VoiceInactivity,
			TranscriptHold: cfg.VoiceTranscriptHold,
			Hooks:          opts.voiceHooks,
		})
	}

	hooks := opts.hooks
	if hooks.Status == nil {
		hooks.Status = statusPrinter
	}
	a.session = session.New(session.Options{
		Library: lib,
		Player:  player,
		Voice:   a.voice,
		Hooks:   hooks,
	})

	if err := a.session.SetIdentity(ctx, who); err != nil {
		logger.Warn("library cache not written", logger.ErrorField(err))
	}
	return a, nil
}

// identityFromConfig decodes AUTH_TOKEN; unusable tokens fall back to an
// anonymous session.
func identityFromConfig() auth.Identity {
	who, err := auth.FromToken(cfg.AuthToken)
	if err != nil {
		logger.Warn("ignoring unreadable auth token", logger.ErrorField(err))
		return auth.Anonymous
	}
	if who.Expired(time.Now()) {
		logger.Warn("auth token expired, continuing anonymously", logger.Time("expiresAt", who.ExpiresAt))
		return auth.Anonymous
	}
	return who
}

// close waits for background confirmations, then releases everything.
func (a *app) close() {
	a.lib.Wait()
	a.session.Close()
	a.lib.Close()
	if err := a.blobs.Close(); err != nil {
		logger.Warn("failed to remove session blobs", logger.ErrorField(err))
	}
	if err := a.kv.Close(); err != nil {
		logger.Warn("failed to close store", logger.ErrorField(err))
	}
}

// signalContext is cancelled on Ctrl-C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
