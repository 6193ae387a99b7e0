package envelope

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"aegis/internal/platform/metrics"
)

// Pool bounds concurrent envelope crypto so CPU-heavy RSA work cannot starve
// request handling. Callers block on the context while waiting for a slot.
type Pool struct {
	sem     *semaphore.Weighted
	tracer  trace.Tracer
	metrics *metrics.Metrics
}

// PoolOption configures the Pool.
type PoolOption func(*Pool)

// WithMetrics sets the metrics collector for operation latency.
func WithMetrics(m *metrics.Metrics) PoolOption {
	return func(p *Pool) { p.metrics = m }
}

// NewPool creates a crypto worker pool with the given parallelism. Zero or
// negative means GOMAXPROCS.
func NewPool(workers int, opts ...PoolOption) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		sem:    semaphore.NewWeighted(int64(workers)),
		tracer: otel.Tracer("aegis/crypto/envelope"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Encrypt seals plaintext for the recipient's public key PEM and returns the
// serialized envelope.
func (p *Pool) Encrypt(ctx context.Context, plaintext []byte, recipientPublicPEM string) (string, error) {
	ctx, span := p.tracer.Start(ctx, "envelope.Encrypt")
	defer span.End()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.sem.Release(1)

	start := time.Now()
	pub, err := ParsePublicKey(recipientPublicPEM)
	if err != nil {
		return "", err
	}
	env, err := Encrypt(plaintext, pub)
	if err != nil {
		return "", err
	}
	out, err := Marshal(env)
	if err != nil {
		return "", err
	}
	p.observe("encrypt", start)
	return out, nil
}

// Decrypt opens a serialized envelope with the private key PEM.
func (p *Pool) Decrypt(ctx context.Context, serialized, privatePEM string) ([]byte, error) {
	ctx, span := p.tracer.Start(ctx, "envelope.Decrypt")
	defer span.End()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	start := time.Now()
	env, err := Unmarshal(serialized)
	if err != nil {
		return nil, err
	}
	priv, err := ParsePrivateKey(privatePEM)
	if err != nil {
		return nil, err
	}
	pt, err := Decrypt(env, priv)
	if err != nil {
		return nil, err
	}
	p.observe("decrypt", start)
	return pt, nil
}

func (p *Pool) observe(op string, start time.Time) {
	if p.metrics != nil {
		p.metrics.CryptoOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
