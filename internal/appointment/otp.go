package appointment

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tcioe/appointment-service/internal/notify"
)

// otpRetention is how long spent records stay queryable before the purge
// sweeper removes them.
const otpRetention = time.Hour

// RequestOTP issues a fresh code for a campus address. Older unverified
// codes for the same email are deactivated, so only the newest one verifies.
func (s *Service) RequestOTP(ctx context.Context, email string) (*OTPVerification, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !strings.HasSuffix(email, s.cfg.CampusEmailDomain) {
		return nil, ErrBadEmailDomain
	}

	if _, err := s.repo.DeactivateOTPs(ctx, email); err != nil {
		return nil, fmt.Errorf("deactivate prior otps: %w", err)
	}

	code, err := NewOTPCode()
	if err != nil {
		return nil, err
	}

	rec, err := s.repo.CreateOTP(ctx, OTPVerification{
		Email:     email,
		Code:      code,
		ExpiresAt: s.now().Add(s.cfg.OTPTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("create otp: %w", err)
	}

	s.notifier.Dispatch(ctx, notify.EventOTPIssued, notify.Context{
		ApplicantEmail:   email,
		OTPCode:          code,
		ExpiresInMinutes: int(s.cfg.OTPTTL.Minutes()),
	})

	return rec, nil
}

// VerifyOTP checks a code without consuming it.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (bool, error) {
	_, err := s.checkOTP(ctx, email, code)
	switch err {
	case nil:
		return true, nil
	case ErrOTPInvalid, ErrOTPExpired, ErrOTPUsed:
		return false, nil
	default:
		return false, err
	}
}

// checkOTP classifies the state of the latest active code for an email. The
// code comparison is constant time.
func (s *Service) checkOTP(ctx context.Context, email, code string) (*OTPVerification, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	rec, err := s.repo.GetLatestActiveOTP(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("load otp: %w", err)
	}
	if rec == nil {
		return nil, ErrOTPInvalid
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return nil, ErrOTPInvalid
	}
	if rec.IsVerified {
		return nil, ErrOTPUsed
	}
	if !s.now().Before(rec.ExpiresAt) {
		return nil, ErrOTPExpired
	}
	return rec, nil
}

// PurgeStaleOTPs deletes records older than the retention window.
func (s *Service) PurgeStaleOTPs(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-1 * otpRetention)
	n, err := s.repo.PurgeOTPsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge otps: %w", err)
	}
	if n > 0 {
		log.Info().Int64("purged", n).Msg("purged stale otp records")
	}
	return n, nil
}
