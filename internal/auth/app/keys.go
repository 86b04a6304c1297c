package app

import (
	"fmt"
	"log/slog"

	"github.com/tinmegali/authserver/pkg/jwtx"
)

// NewKeyProvider picks the key source named by the configuration.
//
// Key sources:
//   - "file": a PEM private key on disk (RSA, P-256 or Ed25519). The
//     algorithm follows the key type.
//   - "secret": an HS256 shared secret, inline or from a file.
//   - "ephemeral": a fresh key per process. Tokens do not survive restarts.
func NewKeyProvider(cfg Config) (jwtx.KeyProvider, error) {
	switch cfg.KeySource {
	case KeySourceFile:
		return jwtx.FileKeyProvider{Path: cfg.SigningKeyFile, KID: cfg.KeyID}, nil
	case KeySourceSecret:
		return jwtx.SecretKeyProvider{
			Secret: []byte(cfg.SigningSecret),
			Path:   cfg.SigningSecretFile,
			KID:    cfg.KeyID,
		}, nil
	case KeySourceEphemeral, "":
		return jwtx.EphemeralKeyProvider{Algorithm: cfg.Algorithm, KID: cfg.KeyID}, nil
	default:
		return nil, fmt.Errorf("%w: unknown key source %q", jwtx.ErrKeyUnavailable, cfg.KeySource)
	}
}

// InitSigningKey loads the signing key and builds the codec. Any failure
// here must stop startup: a server without a usable key cannot issue.
func InitSigningKey(cfg Config, logger *slog.Logger) (*jwtx.Codec, error) {
	provider, err := NewKeyProvider(cfg)
	if err != nil {
		return nil, err
	}

	signer, err := provider.Signer()
	if err != nil {
		return nil, err
	}

	codec, err := jwtx.NewCodec(signer, cfg.Issuer)
	if err != nil {
		return nil, err
	}

	logger.Info("signing key loaded",
		"source", cfg.KeySource,
		"algorithm", codec.Alg(),
		"kid", codec.KID(),
		"issuer", cfg.Issuer,
	)
	if cfg.KeySource == KeySourceEphemeral {
		logger.Warn("ephemeral signing key in use - tokens become invalid on restart")
	}

	return codec, nil
}
