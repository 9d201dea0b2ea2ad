package httpserver

import (
	"context"
	"net/http"
)

type contextKey string

const (
	clientIPKey contextKey = "client_ip"
	schemeKey   contextKey = "scheme"
	hostKey     contextKey = "host"
	faultKey    contextKey = "fault"
)

// UnknownClient is the client key used when no address is available.
const UnknownClient = "unknown"

// ClientIP returns the client address resolved by the forwarded stage.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey).(string); ok && ip != "" {
		return ip
	}
	return UnknownClient
}

// Scheme returns the request scheme resolved by the forwarded stage.
func Scheme(ctx context.Context) string {
	if s, ok := ctx.Value(schemeKey).(string); ok {
		return s
	}
	return "http"
}

// Host returns the request host resolved by the forwarded stage.
func Host(ctx context.Context) string {
	h, _ := ctx.Value(hostKey).(string)
	return h
}

type faultSlot struct {
	err error
}

func withFaultSlot(ctx context.Context) (context.Context, *faultSlot) {
	slot := &faultSlot{}
	return context.WithValue(ctx, faultKey, slot), slot
}

// faultFromContext returns the error recorded by Fail, if any.
func faultFromContext(ctx context.Context) error {
	if slot, ok := ctx.Value(faultKey).(*faultSlot); ok {
		return slot.err
	}
	return nil
}

// Fail reports an unhandled error to the recover stage, which answers with
// 500. The handler must return without writing a response. Outside a
// pipeline Fail writes a bare 500.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	if slot, ok := r.Context().Value(faultKey).(*faultSlot); ok {
		if slot.err == nil {
			slot.err = err
		}
		return
	}
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func contextWith(ctx context.Context, key contextKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}
