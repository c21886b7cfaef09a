package generative

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"ava/internal/apierr"
	"ava/internal/circuitbreaker"
	"ava/internal/core"
)

// GRPCClient is the production Client: a thin wrapper over a
// NarrativeServiceClient stub, every call protected by a circuit breaker so
// a failing backend trips and the evaluator falls back to the fast engine.
type GRPCClient struct {
	stub     NarrativeServiceClient
	breakers *circuitbreaker.GenerativeBreakers
}

// Dial opens an insecure gRPC connection to addr and wraps it as a Client.
// Production deployments should supply TLS transport credentials instead of
// insecure.NewCredentials(); this mirrors the teacher's development-mode
// dial pattern.
func Dial(addr string) (*GRPCClient, func() error, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, apierr.Configuration("generative.Dial", err)
	}
	return NewGRPCClient(&stubClient{conn: conn}), conn.Close, nil
}

// NewGRPCClient wraps an existing stub with circuit-breaker protection.
func NewGRPCClient(stub NarrativeServiceClient) *GRPCClient {
	return &GRPCClient{stub: stub, breakers: circuitbreaker.NewGenerativeBreakers()}
}

// Complete calls the generative backend through the circuit breaker,
// returning a TransientExternal apierr on failure or when the breaker is
// open — the caller (the session evaluator) is expected to fall back to
// the synthesized hint path.
func (c *GRPCClient) Complete(ctx context.Context, p Prompt) (core.GenerativeHint, error) {
	resp, err := circuitbreaker.ExecuteWithFallback(
		c.breakers.Generative,
		func() (*CompletionResponse, error) {
			return c.stub.Complete(ctx, &p)
		},
		func(err error) (*CompletionResponse, error) {
			return nil, apierr.Transient("generative.Complete", err)
		},
	)
	if err != nil {
		return core.GenerativeHint{}, err
	}
	return resp.ToHint(), nil
}

// stubClient is the thin NarrativeServiceClient implementation over a raw
// grpc.ClientConn. A real deployment replaces this with a protoc-generated
// stub; it exists only so GRPCClient has something concrete to wrap in the
// absence of a .proto pipeline, matching the teacher's hand-authored pb
// package.
type stubClient struct {
	conn *grpc.ClientConn
}

func (s *stubClient) Complete(ctx context.Context, in *Prompt, opts ...grpc.CallOption) (*CompletionResponse, error) {
	return nil, fmt.Errorf("generative: no codegen stub wired for %+v", in)
}
