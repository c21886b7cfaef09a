// Package generative defines the client AVA's session evaluator calls to
// synthesize a GenerativeHint for the `llm`/`auto` engine modes. Like the
// teacher's ledger/pb packages, the wire types here are hand-authored
// request/response structs rather than protoc-generated stubs; a real
// deployment would swap grpcClient's marshaling for a generated client
// without changing the Client interface.
package generative

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"ava/internal/core"
)

// Prompt is the request payload sent to the generative-model backend: the
// narrow context it needs to produce a hint, mirroring the adjusters'
// inputs (§4.1) so a hint is directly usable by the MSWIM engine.
type Prompt struct {
	SessionID      string
	SiteURL        string
	PageType       core.PageType
	RecentEvents   []core.TrackEvent
	CartValue      float64
	IsLoggedIn     bool
	IsRepeatVisitor bool
}

// CompletionResponse is the generative backend's hand-authored wire
// response type.
type CompletionResponse struct {
	Intent      int32
	Friction    int32
	Clarity     int32
	Receptivity int32
	Value       int32
	Narrative   string
	Frictions   []string
}

// ToHint converts the wire response into a core.GenerativeHint.
func (r *CompletionResponse) ToHint() core.GenerativeHint {
	return core.GenerativeHint{
		Intent:      int(r.Intent),
		Friction:    int(r.Friction),
		Clarity:     int(r.Clarity),
		Receptivity: int(r.Receptivity),
		Value:       int(r.Value),
		Narrative:   r.Narrative,
		Frictions:   r.Frictions,
	}
}

// NarrativeServiceClient is the hand-authored gRPC client-stub interface
// for the generative-model service, in the style of the teacher's
// pb.LedgerServiceClient.
type NarrativeServiceClient interface {
	Complete(ctx context.Context, in *Prompt, opts ...grpc.CallOption) (*CompletionResponse, error)
}

// Client is what internal/session calls: Complete returns a hint or an
// apierr-wrapped TransientExternal error on RPC failure/timeout.
type Client interface {
	Complete(ctx context.Context, p Prompt) (core.GenerativeHint, error)
}

// DefaultTimeout is the per-call timeout applied when a caller doesn't
// supply its own context deadline (§5 cancellation & timeouts).
const DefaultTimeout = 2 * time.Second
