package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/certzner/internal/util/naming"
)

// Stage is a state of the run state machine.
type Stage string

// Run stages.
const (
	StageValidating   Stage = "validating"
	StageProvisioning Stage = "provisioning"
	StageReachable    Stage = "reachable"
	StageIssuing      Stage = "issuing"
	StageTearingDown  Stage = "tearing-down"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// transitions lists the allowed successors of each stage. Teardown is
// reachable from every stage that may have created resources.
var transitions = map[Stage][]Stage{
	StageValidating:   {StageProvisioning, StageFailed},
	StageProvisioning: {StageReachable, StageTearingDown},
	StageReachable:    {StageIssuing, StageTearingDown},
	StageIssuing:      {StageTearingDown},
	StageTearingDown:  {StageDone, StageFailed},
}

// ErrInvalidTransition is returned for a transition the table does not allow.
var ErrInvalidTransition = errors.New("invalid stage transition")

// CanTransition reports whether from may move to to.
func CanTransition(from, to Stage) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Machine tracks the current stage of a run.
type Machine struct {
	current Stage
	history []Stage
	entered time.Time
	metrics *Metrics
	now     func() time.Time
}

// NewMachine starts a machine in StageValidating.
func NewMachine(metrics *Metrics) *Machine {
	return &Machine{
		current: StageValidating,
		history: []Stage{StageValidating},
		entered: time.Now(),
		metrics: metrics,
		now:     time.Now,
	}
}

// Current returns the current stage.
func (m *Machine) Current() Stage {
	return m.current
}

// History returns every stage entered, in order.
func (m *Machine) History() []Stage {
	return append([]Stage(nil), m.history...)
}

// Transition moves to the next stage.
func (m *Machine) Transition(to Stage) error {
	if !CanTransition(m.current, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.current, to)
	}
	now := m.now()
	m.metrics.ObserveStage(m.current, now.Sub(m.entered))
	m.current = to
	m.entered = now
	m.history = append(m.history, to)
	return nil
}

// Report is the outcome of a run. Certificate outcomes and cleanup
// outcomes are reported separately.
type Report struct {
	RunTag      string
	Stages      []Stage
	Final       Stage
	Domains     []*DomainOutcome
	Err         error
	TeardownRan bool
	TeardownErr error
	Duration    time.Duration
}

// Count returns the number of domains with status.
func (r *Report) Count(status DomainStatus) int {
	n := 0
	for _, d := range r.Domains {
		if d.Status == status {
			n++
		}
	}
	return n
}

// Processed returns the number of domains that were issued or published.
func (r *Report) Processed() int {
	return r.Count(DomainPublished) + r.Count(DomainFailed)
}

// Succeeded reports whether every domain that was attempted was published
// and cleanup completed.
func (r *Report) Succeeded() bool {
	return r.Err == nil && r.TeardownErr == nil && r.Count(DomainFailed) == 0 && r.Count(DomainSkipped) == 0
}

// Pipeline drives a run through its stages.
type Pipeline struct {
	Validate  Phase
	Provision Phase
	Challenge ChallengeCoordinator
	Issuer    CertificateIssuer
	Publisher CertificatePublisher
	Teardown  Phase

	// TeardownTimeout bounds teardown on its fresh context.
	TeardownTimeout time.Duration

	// RetractTimeout bounds each record removal.
	RetractTimeout time.Duration
}

const (
	defaultTeardownTimeout = 20 * time.Minute
	defaultRetractTimeout  = 2 * time.Minute
)

// Run executes the pipeline. Teardown runs on every path past validation,
// on a fresh context so cancellation of ctx cannot skip it.
func (p *Pipeline) Run(ctx *Context) *Report {
	start := time.Now()
	m := NewMachine(ctx.Metrics)
	report := &Report{RunTag: ctx.Run.RunTag}

	defer func() {
		report.Stages = m.History()
		report.Final = m.Current()
		report.Domains = ctx.State.Outcomes()
		report.Duration = time.Since(start)
	}()

	if err := runPhase(ctx, p.Validate); err != nil {
		report.Err = err
		advance(m, report, StageFailed)
		return report
	}

	advance(m, report, StageProvisioning)
	err := runPhase(ctx, p.Provision)
	if err != nil {
		var pe *ProvisioningError
		if !errors.As(err, &pe) {
			err = &ProvisioningError{Step: p.Provision.Name(), Err: err}
		}
	} else {
		advance(m, report, StageReachable)
		if ctx.Run.IssuanceEnabled {
			if perr := p.Issuer.Prepare(ctx); perr != nil {
				err = &ProvisioningError{Step: "install-agent", Err: perr}
			}
		}
		if err == nil {
			advance(m, report, StageIssuing)
			p.issueAll(ctx)
			if ctx.Err() != nil {
				err = fmt.Errorf("run interrupted: %w", ctx.Err())
			}
		}
	}
	report.Err = joinErr(report.Err, err)

	advance(m, report, StageTearingDown)
	timeout := p.TeardownTimeout
	if timeout <= 0 {
		timeout = defaultTeardownTimeout
	}
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	report.TeardownRan = true
	report.TeardownErr = runPhase(ctx.WithContext(tctx), p.Teardown)

	if report.Err != nil || report.TeardownErr != nil {
		advance(m, report, StageFailed)
	} else {
		advance(m, report, StageDone)
	}
	return report
}

// advance moves m to stage. A transition the table rejects is a bug in the
// pipeline; it is added to the run error so the run cannot report success.
func advance(m *Machine, report *Report, to Stage) {
	if err := m.Transition(to); err != nil {
		report.Err = joinErr(report.Err, err)
	}
}

// joinErr keeps a lone error unwrapped.
func joinErr(a, b error) error {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return errors.Join(a, b)
}

// issueAll processes domains sequentially. Cancellation skips the rest.
func (p *Pipeline) issueAll(ctx *Context) {
	total := len(ctx.Run.Domains)
	for i, domain := range ctx.Run.Domains {
		var o *DomainOutcome
		if ctx.Err() != nil {
			o = &DomainOutcome{Domain: domain, Status: DomainSkipped, Err: ctx.Err()}
		} else {
			o = p.processDomain(ctx, domain)
		}
		ctx.State.RecordOutcome(o)
		ctx.Metrics.DomainOutcome(o.Status)
		LogDomainOutcome(ctx.Observer, o)
		ctx.Observer.Progress("Issue", i+1, total)
	}
}

func (p *Pipeline) processDomain(ctx *Context, domain string) *DomainOutcome {
	o := &DomainOutcome{Domain: domain}

	// An artifact already on the instance is published as is, without a
	// challenge or a new order.
	artifact, err := p.Issuer.Existing(ctx, domain)
	if err != nil {
		o.Status, o.Err = DomainFailed, &IssuanceError{Domain: domain, Err: err}
		return o
	}
	if artifact != nil {
		return p.publish(ctx, o, artifact)
	}
	if !ctx.Run.IssuanceEnabled {
		o.Status = DomainAbsent
		return o
	}

	if err := p.Challenge.Publish(ctx, domain); err != nil {
		p.retract(ctx, domain)
		o.Status, o.Err = DomainFailed, err
		return o
	}

	artifact, err = p.Issuer.Issue(ctx, domain)
	p.retract(ctx, domain)
	if err != nil {
		var ie *IssuanceError
		if !errors.As(err, &ie) {
			err = &IssuanceError{Domain: domain, Err: err}
		}
		o.Status, o.Err = DomainFailed, err
		return o
	}

	return p.publish(ctx, o, artifact)
}

func (p *Pipeline) publish(ctx *Context, o *DomainOutcome, artifact *CertificateArtifact) *DomainOutcome {
	o.StoreName = naming.StoreName(artifact.Domain)
	o.Reused = artifact.Reused
	o.NotAfter = artifact.NotAfter
	if err := p.Publisher.Publish(ctx, artifact); err != nil {
		o.Status, o.Err = DomainFailed, err
		return o
	}
	o.Status = DomainPublished
	return o
}

// retract removes the challenge record even when the run was interrupted.
func (p *Pipeline) retract(ctx *Context, domain string) {
	timeout := p.RetractTimeout
	if timeout <= 0 {
		timeout = defaultRetractTimeout
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	p.Challenge.Retract(ctx.WithContext(rctx), domain)
}

// runPhase runs one phase with start/complete/failed events.
func runPhase(ctx *Context, phase Phase) error {
	start := time.Now()
	LogPhaseStart(ctx.Observer, phase.Name())
	if err := phase.Provision(ctx); err != nil {
		LogPhaseFailed(ctx.Observer, phase.Name(), err)
		return err
	}
	LogPhaseComplete(ctx.Observer, phase.Name(), time.Since(start))
	return nil
}

// RunPhases executes phases sequentially, stopping at the first failure.
func RunPhases(ctx *Context, phases []Phase) error {
	start := time.Now()
	ctx.Observer.Printf("Running %d phases...", len(phases))

	for i, phase := range phases {
		phaseStart := time.Now()
		name := fmt.Sprintf("%s (%d/%d)", phase.Name(), i+1, len(phases))

		ctx.Observer.Printf("[%s] starting", name)

		if err := phase.Provision(ctx); err != nil {
			ctx.Observer.Printf("[%s] failed: %v", name, err)
			return fmt.Errorf("%s phase failed: %w", phase.Name(), err)
		}

		ctx.Observer.Printf("[%s] completed in %v", name, time.Since(phaseStart).Round(time.Millisecond))
	}

	ctx.Observer.Printf("Completed in %v", time.Since(start).Round(time.Millisecond))
	return nil
}
