package idcore

import "context"

type contextKey string

const (
	ctxKeyClientIP      contextKey = "idcore.client_ip"
	ctxKeyRequestID     contextKey = "idcore.request_id"
	ctxKeyDeviceSignals contextKey = "idcore.device_signals"
)

// WithClientIP describes the with client i p operation and its observable behavior.
//
// WithClientIP does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// ClientIPFromContext describes the client i p from context operation and its observable behavior.
//
// ClientIPFromContext does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func ClientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyClientIP).(string); ok {
		return v
	}
	return ""
}

// WithRequestID describes the with request i d operation and its observable behavior.
//
// WithRequestID does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFromContext describes the request i d from context operation and its observable behavior.
//
// RequestIDFromContext does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// WithDeviceSignals describes the with device signals operation and its observable behavior.
//
// WithDeviceSignals does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func WithDeviceSignals(ctx context.Context, signals RequestSignals) context.Context {
	return context.WithValue(ctx, ctxKeyDeviceSignals, signals)
}

// DeviceSignalsFromContext describes the device signals from context operation and its observable behavior.
//
// DeviceSignalsFromContext does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DeviceSignalsFromContext(ctx context.Context) (RequestSignals, bool) {
	v, ok := ctx.Value(ctxKeyDeviceSignals).(RequestSignals)
	return v, ok
}
