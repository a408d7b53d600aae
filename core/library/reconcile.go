package library

import (
	"sort"

	"StemDeck/core/auth"
	"StemDeck/core/backend"
	"StemDeck/model"
)

// Reconcile merges the local list with a remote snapshot.
//
// Local records the session can't see are dropped first. Every remote
// record appears exactly once; a local record sharing its RemoteID is
// merged into it, remote metadata winning while local-only fields (ID,
// CacheKey, blob locators, files the remote doesn't list) survive. Local
// records with no matching remote identity are kept as they are. The
// result is stable-sorted newest first, unparseable timestamps last.
//
// When remoteOK is false the remote list is ignored and the result is the
// filtered local list.
func Reconcile(local, remote []model.Track, remoteOK bool, who auth.Identity) []model.Track {
	visible := make([]model.Track, 0, len(local))
	for _, t := range local {
		if t.VisibleTo(who.UserID) {
			visible = append(visible, t.Clone())
		}
	}
	if !remoteOK {
		sortNewestFirst(visible)
		return visible
	}

	remoteByID := make(map[string]model.Track, len(remote))
	remoteOrder := make([]string, 0, len(remote))
	for _, r := range remote {
		if r.RemoteID == "" {
			continue
		}
		if _, dup := remoteByID[r.RemoteID]; dup {
			continue
		}
		remoteByID[r.RemoteID] = r
		remoteOrder = append(remoteOrder, r.RemoteID)
	}

	merged := make([]model.Track, 0, len(visible)+len(remoteOrder))
	used := make(map[string]bool, len(remoteOrder))
	for _, l := range visible {
		r, ok := remoteByID[l.RemoteID]
		if l.RemoteID == "" || !ok {
			merged = append(merged, l)
			continue
		}
		if used[l.RemoteID] {
			// a second local copy of the same remote record
			continue
		}
		used[l.RemoteID] = true
		merged = append(merged, mergeTrack(l, r))
	}
	for _, id := range remoteOrder {
		if !used[id] {
			merged = append(merged, remoteByID[id].Clone().WithLayers())
		}
	}

	sortNewestFirst(merged)
	return merged
}

func mergeTrack(local, remote model.Track) model.Track {
	out := local.Clone()
	out.RemoteID = remote.RemoteID
	if remote.Title != "" {
		out.Title = remote.Title
	}
	if remote.AddedAt.Valid() {
		out.AddedAt = remote.AddedAt
	}
	out.OwnerID = remote.OwnerID
	out.Processed = remote.Processed

	files := make([]model.TrackFile, 0, len(remote.Files)+len(local.Files))
	listed := make(map[string]bool, len(remote.Files))
	for _, rf := range remote.Files {
		f := rf
		if lf, ok := local.File(rf.Name); ok && f.Blob == "" {
			f.Blob = lf.Blob
		}
		listed[f.Name] = true
		files = append(files, f)
	}
	for _, lf := range local.Files {
		if !listed[lf.Name] {
			files = append(files, lf)
		}
	}
	out.Files = files
	return out.WithLayers()
}

func sortNewestFirst(tracks []model.Track) {
	sort.SliceStable(tracks, func(i, j int) bool {
		return tracks[i].AddedAt.After(tracks[j].AddedAt)
	})
}

// TracksFromListing converts a /my-songs listing into remote records.
// Records take the song id as their local id until merged with a local
// record; the owner defaults to the session identity.
func TracksFromListing(listing *backend.SongListing, who auth.Identity) []model.Track {
	if listing == nil {
		return nil
	}
	owner := listing.OwnerID
	if owner == "" {
		owner = who.UserID
	}
	out := make([]model.Track, 0, len(listing.Songs))
	for _, s := range listing.Songs {
		t := model.Track{
			ID:        s.SongID,
			RemoteID:  s.SongID,
			Title:     s.Title,
			AddedAt:   s.CreatedAt,
			OwnerID:   owner,
			Processed: true,
		}
		for _, name := range s.Files {
			t.Files = append(t.Files, model.TrackFile{Name: name})
		}
		out = append(out, t.WithLayers())
	}
	return out
}
