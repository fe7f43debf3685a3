// Package pipeline wires the Semantic Cache, Planner, Tool Executor,
// Synthesizer, and Feedback Store into the single check_claim operation
// described by spec.md §6 and §2's control-flow line: cache lookup → miss
// → Planner → Tool Executor → Synthesizer → conditional cache insert →
// return verdict. Stage transitions are broadcast over the Progress Hub
// the way app/main.py's orchestration reports progress to its own
// websocket-less caller, adapted to the teacher's websocket.Hub.
package pipeline

import (
	"context"
	"time"

	"github.com/zerofake-go/verifier/internal/cache"
	"github.com/zerofake-go/verifier/internal/domain"
	"github.com/zerofake-go/verifier/internal/feedback"
	"github.com/zerofake-go/verifier/internal/planner"
	"github.com/zerofake-go/verifier/internal/synthesizer"
	"github.com/zerofake-go/verifier/internal/websocket"
)

// claimPlanner, claimExecutor and claimSynthesizer are the narrow slices
// of the Planner/Executor/Synthesizer this package actually drives,
// defined here so Pipeline can be exercised with fakes without changing
// those packages' own constructors.
type claimPlanner interface {
	Plan(ctx context.Context, claim string, opts planner.Options) (*domain.Plan, error)
}

type claimExecutor interface {
	Execute(ctx context.Context, plan *domain.Plan) (*domain.EvidenceBundle, *domain.Plan)
}

type claimSynthesizer interface {
	Synthesize(ctx context.Context, claim string, bundle *domain.EvidenceBundle, currentDate, feedbackExamples string) *domain.Verdict
}

// Pipeline ties the cache, planner, executor, synthesizer, and feedback
// store together behind CheckClaim and RecordFeedback.
type Pipeline struct {
	cache    *cache.Cache
	feedback *feedback.Store
	planner  claimPlanner
	executor claimExecutor
	synth    claimSynthesizer
	hub      *websocket.Hub
}

// New builds a Pipeline. hub may be nil, in which case stage events are
// silently dropped (no live client to reach).
func New(c *cache.Cache, f *feedback.Store, p claimPlanner, e claimExecutor, s claimSynthesizer, hub *websocket.Hub) *Pipeline {
	return &Pipeline{cache: c, feedback: f, planner: p, executor: e, synth: s, hub: hub}
}

func (p *Pipeline) broadcast(claimHash, stage, detail string) {
	if p.hub == nil {
		return
	}
	p.hub.BroadcastStage(websocket.StageEvent{ClaimHash: claimHash, Stage: stage, Detail: detail})
}

func (p *Pipeline) broadcastError(claimHash, stage string, err error) {
	if p.hub == nil {
		return
	}
	p.hub.BroadcastStage(websocket.StageEvent{ClaimHash: claimHash, Stage: stage, Error: err.Error()})
}

// CheckClaim runs the full check_claim RPC: cache lookup, and on a miss
// Planner → Tool Executor → Synthesizer, finishing with a conditional
// cache insert gated by the plan's volatility.
func (p *Pipeline) CheckClaim(ctx context.Context, text string) (*domain.Verdict, error) {
	claim := domain.NewClaim(text)

	p.broadcast(claim.Hash, websocket.StageCacheLookup, "")
	if p.cache != nil {
		if v, hit := p.cache.Lookup(claim.Text); hit {
			p.broadcast(claim.Hash, websocket.StageDone, "cache hit")
			return v, nil
		}
	}

	var examples string
	if p.feedback != nil {
		examples = p.feedback.RelevantExamples(claim.Text, feedback.DefaultK)
	}

	p.broadcast(claim.Hash, websocket.StagePlanning, "")
	plan, err := p.planner.Plan(ctx, claim.Text, planner.Options{FeedbackExamples: examples})
	if err != nil {
		p.broadcastError(claim.Hash, websocket.StagePlanning, err)
		return nil, err
	}

	p.broadcast(claim.Hash, websocket.StageToolExecution, "")
	bundle, plan := p.executor.Execute(ctx, plan)

	p.broadcast(claim.Hash, websocket.StageSynthesis, "")
	currentDate := time.Now().Format("2006-01-02")
	verdict := p.synth.Synthesize(ctx, claim.Text, bundle, currentDate, examples)

	if p.cache != nil {
		go func() {
			_ = p.cache.Insert(claim.Text, *verdict, plan.Volatility, string(plan.ClaimType))
		}()
	}

	p.broadcast(claim.Hash, websocket.StageDone, string(verdict.Conclusion))
	return verdict, nil
}

// RecordFeedback implements the feedback RPC: append-only, writes only to
// the feedback store.
func (p *Pipeline) RecordFeedback(claimText, systemConclusion, systemReason, humanCorrection, notes string) error {
	if p.feedback == nil {
		return nil
	}
	_, err := p.feedback.Log(claimText, systemConclusion, systemReason, humanCorrection, notes)
	return err
}

// Verify re-runs Planner → Tool Executor → Synthesizer for claimText with
// cache.Verify's signature, for the Cache's background refresher. Unlike
// CheckClaim it neither looks up nor inserts into the cache.
func (p *Pipeline) Verify(ctx context.Context, claimText string) (*domain.Verdict, error) {
	plan, err := p.planner.Plan(ctx, claimText, planner.Options{FlashMode: true})
	if err != nil {
		return nil, err
	}
	bundle, plan := p.executor.Execute(ctx, plan)
	currentDate := time.Now().Format("2006-01-02")
	return p.synth.Synthesize(ctx, claimText, bundle, currentDate, ""), nil
}
