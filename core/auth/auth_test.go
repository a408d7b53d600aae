package auth_test

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"StemDeck/core/auth"
)

func sign(c jwt.MapClaims) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("test-secret"))
	Expect(err).NotTo(HaveOccurred())
	return token
}

var _ = Describe("Identity", func() {
	It("treats an empty token as anonymous", func() {
		id, err := auth.FromToken("  ")
		Expect(err).NotTo(HaveOccurred())
		Expect(id.Authenticated()).To(BeFalse())
	})

	It("reads the subject and expiry", func() {
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		token := sign(jwt.MapClaims{"sub": "user-1", "exp": exp.Unix()})

		id, err := auth.FromToken("Bearer " + token)
		Expect(err).NotTo(HaveOccurred())
		Expect(id.UserID).To(Equal("user-1"))
		Expect(id.Token).To(Equal(token))
		Expect(id.Authenticated()).To(BeTrue())
		Expect(id.ExpiresAt.Equal(exp)).To(BeTrue())
		Expect(id.Expired(time.Now())).To(BeFalse())
		Expect(id.Expired(exp.Add(time.Minute))).To(BeTrue())
	})

	It("falls back to custom user id claims", func() {
		id, err := auth.FromToken(sign(jwt.MapClaims{"userId": "user-2"}))
		Expect(err).NotTo(HaveOccurred())
		Expect(id.UserID).To(Equal("user-2"))
	})

	It("rejects tokens without a subject or garbage", func() {
		_, err := auth.FromToken(sign(jwt.MapClaims{"role": "x"}))
		Expect(err).To(HaveOccurred())

		_, err = auth.FromToken("not-a-jwt")
		Expect(err).To(HaveOccurred())
	})

	It("compares identities by user", func() {
		a := auth.Identity{UserID: "u", Token: "t1"}
		b := auth.Identity{UserID: "u", Token: "t2"}
		Expect(a.Equal(b)).To(BeTrue())
		Expect(a.Equal(auth.Anonymous)).To(BeFalse())
	})
})
