package telemetry

import "context"

type ctxKey byte

const telemeterContextKey ctxKey = iota

func ContextWithTelemeter(ctx context.Context, tlm *Telemeter) context.Context {
	return context.WithValue(ctx, telemeterContextKey, tlm)
}

// TelemeterFromContext returns the telemeter of the context, a no-op one when there is none.
func TelemeterFromContext(ctx context.Context) *Telemeter {
	if tlm, ok := ctx.Value(telemeterContextKey).(*Telemeter); ok && tlm != nil {
		return tlm
	}

	return new(Telemeter)
}
