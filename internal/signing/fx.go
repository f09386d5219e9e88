package signing

import (
	"github.com/smallbiznis/smartinvoice/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("signing",
	fx.Provide(ProvideSigner),
)

// ProvideSigner loads the configured key pair. Missing or unreadable files
// yield a nil Signer and submissions go out unsigned.
func ProvideSigner(cfg config.Config, log *zap.Logger) Signer {
	log = log.Named("signing")
	if !cfg.Signing.Enabled() {
		log.Info("digital signing disabled")
		return nil
	}

	signer, err := LoadFileSigner(cfg.Signing.PrivateKeyPath, cfg.Signing.CertificatePath)
	if err != nil {
		log.Warn("digital signing unavailable, submissions will be unsigned",
			zap.String("private_key_path", cfg.Signing.PrivateKeyPath),
			zap.String("certificate_path", cfg.Signing.CertificatePath),
			zap.Error(err),
		)
		return nil
	}

	cert := signer.Certificate()
	log.Info("digital signing enabled",
		zap.String("subject", cert.Subject.CommonName),
		zap.Time("not_after", cert.NotAfter),
	)
	return signer
}
