package playback

import (
	"context"

	"StemDeck/core/apperr"
	"StemDeck/logger"
	"StemDeck/model"
)

// SourceResolver finds a playable source for one file.
type SourceResolver interface {
	Resolve(ctx context.Context, file model.TrackFile, track model.Track) (Source, error)
}

// BlobPaths maps in-session blob references to files.
type BlobPaths interface {
	Path(ref string) (string, bool)
}

// URLSigner produces short-lived URLs for stored files.
type URLSigner interface {
	ResolvePlayableURL(ctx context.Context, remoteID, filename string) (string, error)
}

// CacheRoutes builds the stable route of a cached file.
type CacheRoutes interface {
	CacheFileURL(cacheKey, filename string) string
}

// Resolver tries, in order: the session blob, a signed URL for stored
// tracks, the cache route for locally processed uploads. Nil fields skip
// their step.
type Resolver struct {
	Blobs  BlobPaths
	Signer URLSigner
	Cache  CacheRoutes
}

func (r *Resolver) Resolve(ctx context.Context, file model.TrackFile, track model.Track) (Source, error) {
	if file.Blob != "" && r.Blobs != nil {
		if p, ok := r.Blobs.Path(file.Blob); ok {
			return Source{Kind: SourceBlob, Location: p}, nil
		}
	}

	var lastErr error
	if track.RemoteID != "" && r.Signer != nil {
		u, err := r.Signer.ResolvePlayableURL(ctx, track.RemoteID, file.Name)
		if err == nil && u != "" {
			return Source{Kind: SourceSigned, Location: u}, nil
		}
		if err != nil {
			logger.Warn("signed url unavailable",
				logger.String("track", track.ID),
				logger.String("file", file.Name),
				logger.ErrorField(err))
			lastErr = err
		}
	}

	if track.CacheKey != "" && r.Cache != nil {
		return Source{Kind: SourceCache, Location: r.Cache.CacheFileURL(track.CacheKey, file.Name)}, nil
	}

	msg := "no playable source for " + file.Name
	if lastErr != nil {
		return Source{}, apperr.Wrap(lastErr, apperr.NoPlayableSource, msg)
	}
	return Source{}, apperr.Message(apperr.NoPlayableSource, msg)
}

var _ SourceResolver = (*Resolver)(nil)
