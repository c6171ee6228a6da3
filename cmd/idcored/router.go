package main

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veriden/idcore"
	"github.com/veriden/idcore/pin"
)

func newRouter(engine *idcore.Engine, logger *zap.Logger) http.Handler {
	api := &apiServer{engine: engine, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(api.enrichContext)

	r.Route("/v1", func(r chi.Router) {
		r.With(api.rateLimit(idcore.GroupRegistration)).
			Post("/identities", api.register)
		r.With(api.rateLimit(idcore.GroupOtp)).
			Post("/identities/{id}/otp/resend", api.resendOtp)
		r.With(api.rateLimit(idcore.GroupOtp)).
			Post("/identities/{id}/otp/verify", api.verifyOtp)
		r.With(api.rateLimit(idcore.GroupPin)).
			Post("/identities/{id}/pin", api.setPin)
		r.With(api.rateLimit(idcore.GroupPin)).
			Put("/identities/{id}/pin", api.changePin)
		r.With(api.rateLimit(idcore.GroupAuthorize)).
			Post("/login", api.login)
		r.With(api.rateLimit(idcore.GroupToken)).
			Post("/token/refresh", api.refresh)
		r.With(api.rateLimit(idcore.GroupSessions)).
			Get("/identities/{id}/devices", api.devices)
		r.With(api.rateLimit(idcore.GroupSessions)).
			Delete("/identities/{id}/devices/{deviceID}", api.revokeDevice)
		r.Get("/identities/{id}/status", api.registrationStatus)
		r.With(api.rateLimit(idcore.GroupAuthorize)).
			Get("/identities/{id}/risk", api.riskScore)
		r.Get("/identities/{id}/audit", api.auditTrail)
		r.Get("/audit/export", api.auditExport)
		r.Get("/audit/verify", api.auditVerify)
		r.Get("/metrics", api.metrics)
	})
	return r
}

type apiServer struct {
	engine *idcore.Engine
	logger *zap.Logger
}

// enrichContext copies transport metadata onto the context keys the engine
// reads.
func (a *apiServer) enrichContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		ctx = idcore.WithClientIP(ctx, ip)
		ctx = idcore.WithRequestID(ctx, middleware.GetReqID(ctx))
		ctx = idcore.WithDeviceSignals(ctx, idcore.RequestSignals{
			UserAgent:        r.UserAgent(),
			AcceptLanguage:   r.Header.Get("Accept-Language"),
			ScreenResolution: r.Header.Get("X-Screen-Resolution"),
			Timezone:         r.Header.Get("X-Timezone"),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *apiServer) rateLimit(group idcore.RateGroup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identityID := chi.URLParam(r, "id")
			dec, err := a.engine.RateLimit(r.Context(), group, identityID)
			if err != nil {
				a.writeError(w, r, err)
				return
			}
			if !dec.Allowed {
				retry := int(dec.RetryAfter.Seconds())
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeJSON(w, http.StatusTooManyRequests, map[string]string{
					"error":   "rate_limit_exceeded",
					"message": "Too many requests. Please retry later.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *apiServer) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NationalID  string `json:"national_id"`
		Email       string `json:"email"`
		Phone       string `json:"phone"`
		DisplayName string `json:"display_name"`
		Channel     string `json:"channel"`
	}
	if !decode(w, r, &req) {
		return
	}
	result, err := a.engine.Register(r.Context(), idcore.RegistrationInput{
		NationalID:  req.NationalID,
		Email:       req.Email,
		Phone:       req.Phone,
		DisplayName: req.DisplayName,
		Channel:     idcore.OtpChannel(req.Channel),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"identity_id":  result.IdentityID,
		"status":       result.Status,
		"otp_expires":  result.Otp.ExpiresAt,
		"resend_after": result.Otp.ResendAfter,
	})
}

func (a *apiServer) resendOtp(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Channel string `json:"channel"`
	}
	if !decode(w, r, &req) {
		return
	}
	delivery, err := a.engine.ResendOtp(r.Context(), id, idcore.OtpChannel(req.Channel))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"otp_expires":  delivery.ExpiresAt,
		"resend_after": delivery.ResendAfter,
	})
}

func (a *apiServer) verifyOtp(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Channel string `json:"channel"`
		Code    string `json:"code"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := a.engine.VerifyOtp(r.Context(), id, idcore.OtpChannel(req.Channel), req.Code); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

func (a *apiServer) setPin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Pin string `json:"pin"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := a.engine.SetPin(r.Context(), id, req.Pin); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "active"})
}

func (a *apiServer) changePin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		CurrentPin string `json:"current_pin"`
		NewPin     string `json:"new_pin"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := a.engine.ChangePin(r.Context(), id, req.CurrentPin, req.NewPin); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rotated"})
}

func (a *apiServer) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NationalID string `json:"national_id"`
		Pin        string `json:"pin"`
	}
	if !decode(w, r, &req) {
		return
	}
	result, err := a.engine.Login(r.Context(), req.NationalID, req.Pin)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if result.StepUpRequired {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"identity_id":  result.IdentityID,
			"step_up":      true,
			"risk_level":   result.RiskLevel,
			"otp_expires":  result.StepUp.ExpiresAt,
			"resend_after": result.StepUp.ResendAfter,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"identity_id":   result.IdentityID,
		"access_token":  result.Tokens.AccessToken,
		"refresh_token": result.Tokens.RefreshToken,
		"expires_at":    result.Tokens.ExpiresAt,
		"risk_level":    result.RiskLevel,
		"new_device":    result.NewDevice,
		"trust_level":   result.TrustLevel,
	})
}

func (a *apiServer) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decode(w, r, &req) {
		return
	}
	pair, err := a.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.ExpiresAt,
	})
}

func (a *apiServer) devices(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	devices, err := a.engine.Devices(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (a *apiServer) revokeDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	deviceID, ok := pathUUID(w, r, "deviceID")
	if !ok {
		return
	}
	if err := a.engine.RevokeDevice(r.Context(), id, deviceID); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *apiServer) riskScore(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	assessment, err := a.engine.ScoreLoginRisk(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"score":      assessment.Score,
		"level":      assessment.Level,
		"factors":    assessment.Factors,
		"new_device": assessment.NewDevice,
	})
}

func (a *apiServer) registrationStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	status, level, err := a.engine.RegistrationStatus(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":        string(status),
		"account_level": string(level),
	})
}

func (a *apiServer) auditTrail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := a.engine.AuditTrail(r.Context(), id, limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *apiServer) auditExport(w http.ResponseWriter, r *http.Request) {
	after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := a.engine.AuditExport(r.Context(), after, limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *apiServer) auditVerify(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.VerifyAuditIntegrity(r.Context()); err != nil {
		var broken *idcore.ChainBreakError
		if errors.As(err, &broken) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"intact":   false,
				"break_at": broken.Sequence,
			})
			return
		}
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"intact": true})
}

func (a *apiServer) metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.Snapshot())
}

func (a *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, idcore.ErrIdentityNotFound),
		errors.Is(err, idcore.ErrOtpNotFound),
		errors.Is(err, idcore.ErrDeviceNotFound):
		status = http.StatusNotFound
	case errors.Is(err, idcore.ErrIdentityExists),
		errors.Is(err, idcore.ErrPinAlreadySet),
		errors.Is(err, idcore.ErrInvalidStatusTransition):
		status = http.StatusConflict
	case errors.Is(err, idcore.ErrOtpMismatch),
		errors.Is(err, idcore.ErrOtpExpired),
		errors.Is(err, idcore.ErrPinMismatch),
		errors.Is(err, idcore.ErrTokenReplayed):
		status = http.StatusUnauthorized
	case errors.Is(err, idcore.ErrIdentityLocked),
		errors.Is(err, idcore.ErrIdentitySuspended),
		errors.Is(err, idcore.ErrIdentityNotActive),
		errors.Is(err, idcore.ErrLockoutActive),
		errors.Is(err, idcore.ErrOtpExhausted),
		errors.Is(err, idcore.ErrHighRisk),
		errors.Is(err, idcore.ErrDeviceRevoked):
		status = http.StatusForbidden
	case errors.Is(err, idcore.ErrOtpCooldown):
		status = http.StatusTooManyRequests
	case errors.Is(err, idcore.ErrSecurityStateUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, idcore.ErrPinReuse),
		errors.Is(err, idcore.ErrPinNotSet),
		errors.Is(err, pin.ErrPolicyLength),
		errors.Is(err, pin.ErrPolicyRepeatedDigit),
		errors.Is(err, pin.ErrPolicySequentialRun),
		errors.Is(err, pin.ErrPolicyRepeatedPattern):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, idcore.ErrInvalidInput):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		a.logger.Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, status, map[string]string{"error": "internal_error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed " + name})
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
