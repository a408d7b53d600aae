package playback_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"StemDeck/core/apperr"
	"StemDeck/core/playback"
	"StemDeck/model"
)

func track(files ...string) model.Track {
	t := model.Track{ID: "t1", Title: "Song", CacheKey: "ck"}
	for _, f := range files {
		t.Files = append(t.Files, model.TrackFile{Name: f})
	}
	return t.WithLayers()
}

var _ = Describe("Engine", func() {
	var (
		ctx    context.Context
		out    *fakeOutput
		engine *playback.Engine
		song   model.Track
	)

	BeforeEach(func() {
		ctx = context.Background()
		out = &fakeOutput{}
		engine = playback.NewEngine(out, &playback.Resolver{Cache: fakeCache{}})
		song = track("original.mp3", "vocals.mp3", "drums.mp3")
	})

	play := func(name string) error {
		f, _ := song.File(name)
		return engine.Play(ctx, playback.Key{TrackID: song.ID, Filename: name}, f, song)
	}

	It("toggles pause and resume on repeated plays", func() {
		key := playback.Key{TrackID: "t1", Filename: "vocals.mp3"}

		Expect(play("vocals.mp3")).To(Succeed())
		Expect(engine.State(key)).To(Equal(playback.Playing))

		Expect(play("vocals.mp3")).To(Succeed())
		Expect(engine.State(key)).To(Equal(playback.Paused))
		Expect(out.opened()[0].isPlaying()).To(BeFalse())

		Expect(play("vocals.mp3")).To(Succeed())
		Expect(engine.State(key)).To(Equal(playback.Playing))
		Expect(out.opened()).To(HaveLen(1))
	})

	It("creates one channel for concurrent plays of the same key", func() {
		out.delay = 20 * time.Millisecond
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				Expect(play("vocals.mp3")).To(Succeed())
			}()
		}
		wg.Wait()

		Expect(out.opened()).To(HaveLen(1))
		Expect(engine.State(playback.Key{TrackID: "t1", Filename: "vocals.mp3"})).To(Equal(playback.Paused))
	})

	It("aligns a new channel to a playing one", func() {
		Expect(play("vocals.mp3")).To(Succeed())
		_ = out.opened()[0].Seek(42 * time.Second)

		Expect(play("drums.mp3")).To(Succeed())
		drums := out.opened()[1]
		Expect(drums.seeks).To(Equal([]time.Duration{42 * time.Second}))
		Expect(engine.Snapshot().Times[playback.Key{TrackID: "t1", Filename: "drums.mp3"}]).To(Equal(42 * time.Second))
	})

	It("does not seek when nothing else is playing", func() {
		Expect(play("vocals.mp3")).To(Succeed())
		Expect(play("vocals.mp3")).To(Succeed()) // paused
		Expect(play("drums.mp3")).To(Succeed())
		Expect(out.opened()[1].seeks).To(BeEmpty())
	})

	It("records progress and duration, and drops the channel on natural end", func() {
		Expect(play("vocals.mp3")).To(Succeed())
		key := playback.Key{TrackID: "t1", Filename: "vocals.mp3"}
		s := out.opened()[0]

		s.cb.OnDuration(3 * time.Minute)
		s.cb.OnProgress(5 * time.Second)
		snap := engine.Snapshot()
		Expect(snap.Durations[key]).To(Equal(3 * time.Minute))
		Expect(snap.Times[key]).To(Equal(5 * time.Second))
		Expect(snap.Playing).To(Equal([]playback.Key{key}))

		s.cb.OnEnd()
		Expect(engine.State(key)).To(Equal(playback.Idle))
		Expect(s.isClosed()).To(BeTrue())
		Expect(engine.Snapshot().Times).NotTo(HaveKey(key))

		s.cb.OnProgress(6 * time.Second)
		Expect(engine.Snapshot().Times).NotTo(HaveKey(key))
	})

	It("seeks only existing channels and updates the time map immediately", func() {
		key := playback.Key{TrackID: "t1", Filename: "vocals.mp3"}
		Expect(engine.Seek(key, time.Second)).To(Succeed())
		Expect(engine.Snapshot().Times).To(BeEmpty())

		Expect(play("vocals.mp3")).To(Succeed())
		Expect(engine.Seek(key, 7*time.Second)).To(Succeed())
		Expect(engine.Snapshot().Times[key]).To(Equal(7 * time.Second))
		Expect(out.opened()[0].Position()).To(Equal(7 * time.Second))
	})

	It("stops and releases everything", func() {
		Expect(play("vocals.mp3")).To(Succeed())
		Expect(play("drums.mp3")).To(Succeed())
		Expect(play("drums.mp3")).To(Succeed())

		engine.StopAll()
		snap := engine.Snapshot()
		Expect(snap.Playing).To(BeEmpty())
		Expect(snap.Paused).To(BeEmpty())
		for _, s := range out.opened() {
			Expect(s.isClosed()).To(BeTrue())
		}
	})

	It("plays every stem except the original", func() {
		Expect(play("vocals.mp3")).To(Succeed())
		opened := len(out.opened())

		Expect(engine.PlayAll(ctx, song)).To(Succeed())
		Expect(out.opened()).To(HaveLen(opened + 1))
		Expect(engine.Snapshot().Playing).To(ConsistOf(
			playback.Key{TrackID: "t1", Filename: "drums.mp3"},
			playback.Key{TrackID: "t1", Filename: "vocals.mp3"},
		))
		Expect(engine.State(playback.Key{TrackID: "t1", Filename: "original.mp3"})).To(Equal(playback.Idle))
	})

	It("stops only the channels of one track", func() {
		other := track("bass.mp3")
		other.ID = "t2"
		f, _ := other.File("bass.mp3")
		Expect(engine.Play(ctx, playback.Key{TrackID: "t2", Filename: "bass.mp3"}, f, other)).To(Succeed())
		Expect(play("vocals.mp3")).To(Succeed())

		engine.StopTrack("t1")
		Expect(engine.Snapshot().Playing).To(Equal([]playback.Key{{TrackID: "t2", Filename: "bass.mp3"}}))
	})

	It("fails with no playable source", func() {
		engine = playback.NewEngine(out, &playback.Resolver{})
		err := play("vocals.mp3")
		Expect(apperr.Is(err, apperr.NoPlayableSource)).To(BeTrue())
		Expect(out.opened()).To(BeEmpty())
	})
})

var _ = Describe("Resolver", func() {
	ctx := context.Background()
	stored := model.Track{ID: "t1", RemoteID: "s1", CacheKey: "ck"}

	It("prefers the session blob", func() {
		r := &playback.Resolver{Blobs: fakeBlobs{"blob:1": "/tmp/v.mp3"}, Signer: &fakeSigner{}, Cache: fakeCache{}}
		src, err := r.Resolve(ctx, model.TrackFile{Name: "vocals.mp3", Blob: "blob:1"}, stored)
		Expect(err).NotTo(HaveOccurred())
		Expect(src).To(Equal(playback.Source{Kind: playback.SourceBlob, Location: "/tmp/v.mp3"}))
	})

	It("signs stored files when the blob is gone", func() {
		signer := &fakeSigner{}
		r := &playback.Resolver{Blobs: fakeBlobs{}, Signer: signer, Cache: fakeCache{}}
		src, err := r.Resolve(ctx, model.TrackFile{Name: "vocals.mp3", Blob: "blob:gone"}, stored)
		Expect(err).NotTo(HaveOccurred())
		Expect(src.Kind).To(Equal(playback.SourceSigned))
		Expect(src.Location).To(Equal("https://signed/s1/vocals.mp3"))
	})

	It("falls back to the cache route when signing fails", func() {
		r := &playback.Resolver{Signer: &fakeSigner{err: errors.New("anonymous")}, Cache: fakeCache{}}
		src, err := r.Resolve(ctx, model.TrackFile{Name: "vocals.mp3"}, stored)
		Expect(err).NotTo(HaveOccurred())
		Expect(src).To(Equal(playback.Source{Kind: playback.SourceCache, Location: "https://api/cache/ck/vocals.mp3"}))
	})

	It("wraps the signing failure when nothing else resolves", func() {
		r := &playback.Resolver{Signer: &fakeSigner{err: errors.New("anonymous")}}
		_, err := r.Resolve(ctx, model.TrackFile{Name: "vocals.mp3"}, model.Track{RemoteID: "s1"})
		Expect(apperr.Is(err, apperr.NoPlayableSource)).To(BeTrue())
		Expect(err).To(MatchError(ContainSubstring("anonymous")))
	})
})
