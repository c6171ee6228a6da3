package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/veriden/idcore"
	"github.com/veriden/idcore/internal"
	"github.com/veriden/idcore/token"
)

// issuerAdapter binds the token package to the engine's TokenIssuer
// boundary.
type issuerAdapter struct {
	issuer *token.Issuer
}

func (a *issuerAdapter) Issue(ctx context.Context, identityID string) (string, string, string, time.Time, error) {
	pair, err := a.issuer.Issue(identityID)
	if err != nil {
		return "", "", "", time.Time{}, err
	}
	return pair.AccessToken, pair.RefreshToken, pair.RefreshID, pair.AccessExpiry, nil
}

func (a *issuerAdapter) VerifyRefresh(ctx context.Context, refreshToken string) (string, string, time.Time, error) {
	claims, err := a.issuer.Parse(refreshToken)
	if err != nil {
		return "", "", time.Time{}, err
	}
	if claims.TokenUse != "refresh" {
		return "", "", time.Time{}, token.ErrTokenInvalid
	}
	return claims.Subject, claims.ID, claims.ExpiresAt.Time, nil
}

func (a *issuerAdapter) RefreshTTL() time.Duration {
	return a.issuer.RefreshTTL()
}

// logSender is the development CodeSender: it logs the masked destination
// and the challenge channel. The code itself is never logged; a real
// deployment replaces this with an SMS/email gateway client.
type logSender struct {
	logger *zap.Logger
}

func (s *logSender) Send(ctx context.Context, channel idcore.OtpChannel, destination, code string) error {
	masked := internal.MaskPhone(destination)
	if channel == idcore.ChannelEmail {
		masked = internal.MaskEmail(destination)
	}
	s.logger.Info("otp dispatched",
		zap.String("channel", string(channel)),
		zap.String("destination", masked))
	return nil
}
