package backend

import "context"

// Verifier supplies the bot-verification token attached to uploads.
type Verifier interface {
	Token(ctx context.Context) (string, error)
}

// StaticVerifier returns a token solved out of band.
type StaticVerifier string

func (s StaticVerifier) Token(context.Context) (string, error) {
	return string(s), nil
}

// VerifierFor returns nil when no site key is configured, so the
// verification step is skipped.
func VerifierFor(siteKey, token string) Verifier {
	if siteKey == "" {
		return nil
	}
	return StaticVerifier(token)
}
