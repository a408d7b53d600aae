package storage_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"StemDeck/config"
	"StemDeck/storage"
)

var _ = Describe("MinioSigner", func() {
	cfg := &config.Config{
		MinioEndpoint:  "localhost:9000",
		MinioAccessKey: "access",
		MinioSecretKey: "secret",
		MinioBucket:    "stems",
		MinioRegion:    "us-east-1",
	}

	It("is only enabled with full credentials", func() {
		Expect(storage.MinioConfigured(cfg)).To(BeTrue())
		Expect(storage.MinioConfigured(&config.Config{MinioEndpoint: "localhost:9000"})).To(BeFalse())
	})

	It("lays objects out per owner and song", func() {
		Expect(storage.ObjectKey("u1", "s1", "out/vocals.mp3")).To(Equal("songs/u1/s1/vocals.mp3"))
	})

	It("signs GET URLs without contacting the server", func() {
		signer, err := storage.NewMinioSigner(cfg)
		Expect(err).NotTo(HaveOccurred())

		u, err := signer.SignedURL(context.Background(), "u1", "s1", "vocals.mp3")
		Expect(err).NotTo(HaveOccurred())
		Expect(u).To(ContainSubstring("/stems/songs/u1/s1/vocals.mp3"))
		Expect(u).To(ContainSubstring("X-Amz-Signature="))
	})
})
