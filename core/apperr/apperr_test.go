package apperr_test

import (
	"fmt"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"StemDeck/core/apperr"
)

var _ = Describe("AppErr", func() {
	It("keeps marks through further wrapping", func() {
		err := apperr.Message(apperr.Validation, "terms must be accepted")
		wrapped := fmt.Errorf("add track: %w", errors.Wrap(err, "outer"))

		Expect(apperr.Is(wrapped, apperr.Validation)).To(BeTrue())
		Expect(apperr.Is(wrapped, apperr.Transport)).To(BeFalse())
		Expect(apperr.Is(nil, apperr.Validation)).To(BeFalse())
	})

	It("prefers backend detail for user messages", func() {
		base := apperr.Message(apperr.Transport, "upload failed with status 422")
		Expect(apperr.UserMessage(base)).To(Equal("upload failed with status 422"))

		detailed := apperr.WithDetail(base, "File is not an audio file")
		Expect(apperr.UserMessage(errors.Wrap(detailed, "upload"))).To(Equal("File is not an audio file"))
		Expect(apperr.Is(detailed, apperr.Transport)).To(BeTrue())
	})
})
