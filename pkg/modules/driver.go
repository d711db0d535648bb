package modules

import (
	"sort"

	"github.com/nooga/ecmacore/pkg/completion"
	ecerrors "github.com/nooga/ecmacore/pkg/errors"
	"github.com/nooga/ecmacore/pkg/exec"
	"github.com/nooga/ecmacore/pkg/promise"
	"github.com/nooga/ecmacore/pkg/values"
)

// Evaluate is the public entry point for module evaluation.
// It requires Status ∈ {Linked, EvaluatingAsync, Evaluated}; if the module
// has already (fully or partially) evaluated, it redirects to its
// cycleRoot's capability rather than re-running InnerModuleEvaluation;
// this is what gives TopLevelCapability its at-most-once-per-SCC
// assignment.
func (m *Module) Evaluate() (*promise.Promise, error) {
	switch m.Status {
	case Linked, EvaluatingAsync, Evaluated:
	default:
		return nil, ecerrors.NewInvariantError(
			"Evaluate: module %s not in Linked/EvaluatingAsync/Evaluated (got %s)", m.Specifier, m.Status)
	}

	target := m
	if (m.Status == EvaluatingAsync || m.Status == Evaluated) && m.CycleRoot != nil {
		target = m.CycleRoot
	}

	if target.TopLevelCapability != nil {
		return target.TopLevelCapability.Promise, nil
	}

	cap := promise.NewCapability(target.graph.queue, target.graph.realm)
	target.TopLevelCapability = cap

	stack := newModuleStack()
	order := 0
	_, err := innerModuleEvaluation(target, stack, 0, &order)
	if err != nil {
		jsErr, ok := err.(*ecerrors.JSException)
		if !ok {
			// An InvariantViolation (or any other host bug) must abort the
			// operation distinctly rather than silently settle the
			// capability.
			return nil, err
		}
		rec := completion.ThrowValue(jsErr.Value, nil)
		for _, s := range stack.all() {
			s.EvalError = &rec
			s.Status = Evaluated
		}
		cap.Reject(jsErr.Value)
		return cap.Promise, nil
	}

	if !target.AsyncEvaluation {
		cap.Resolve(values.Undefined)
	}
	// Else: target is async-evaluating; AsyncModuleExecutionFulfilled or
	// AsyncModuleExecutionRejected settles the capability once its body
	// (and any pending async dependents) finish.

	return cap.Promise, nil
}

// innerModuleEvaluation implements the InnerModuleEvaluation abstract
// operation (ECMA-262 16.2.1.5.2.1). order is the shared AsyncEvalOrder
// counter threaded through the whole DFS, post-incremented as each module
// turns async-evaluating.
func innerModuleEvaluation(m *Module, stack *moduleStack, index int, order *int) (int, error) {
	switch m.Status {
	case EvaluatingAsync, Evaluated:
		if m.EvalError != nil {
			return 0, &ecerrors.JSException{Value: m.EvalError.Value}
		}
		return index, nil
	case Evaluating:
		return index, nil
	}

	if m.Status != Linked {
		return 0, ecerrors.NewInvariantError("innerModuleEvaluation: module %s not Linked", m.Specifier)
	}

	m.Status = Evaluating
	m.dfsIndex = index
	m.dfsAncestorIndex = index
	m.PendingAsyncDependencies = 0
	index++
	stack.push(m)
	if max := m.graph.config.MaxModuleDepth; max > 0 && len(stack.items) > max {
		return 0, ecerrors.NewInvariantError(
			"innerModuleEvaluation: import chain exceeds MaxModuleDepth %d at %s", max, m.Specifier)
	}

	for _, spec := range m.RequestedModules {
		target, err := m.resolveRequested(spec)
		if err != nil {
			return 0, err
		}

		var evalErr error
		index, evalErr = innerModuleEvaluation(target, stack, index, order)
		if evalErr != nil {
			return 0, evalErr
		}

		switch target.Status {
		case Evaluating:
			if target.dfsAncestorIndex < m.dfsAncestorIndex {
				m.dfsAncestorIndex = target.dfsAncestorIndex
			}
		case EvaluatingAsync, Evaluated:
			root := target.CycleRoot
			if root == nil {
				root = target
			}
			if root.Status == EvaluatingAsync {
				m.PendingAsyncDependencies++
				root.AsyncParentModules = append(root.AsyncParentModules, m)
			}
		default:
			return 0, ecerrors.NewInvariantError(
				"innerModuleEvaluation: dependency %s in unexpected status %s", target.Specifier, target.Status)
		}
	}

	if m.PendingAsyncDependencies > 0 || m.HasTLA {
		m.AsyncEvaluation = true
		m.AsyncEvalOrder = *order
		*order++

		if m.PendingAsyncDependencies == 0 {
			m.ExecuteAsync()
		}
		// Else: m has unresolved async dependencies. It runs neither now
		// nor synchronously; AsyncModuleExecutionFulfilled's
		// GatherAvailableAncestors fan-out (driven by whichever dependency
		// settles last) executes it once PendingAsyncDependencies reaches
		// zero.
	} else if err := m.runSyncBody(); err != nil {
		return 0, err
	}

	if !stack.containsExactlyOnce(m) {
		return 0, ecerrors.NewInvariantError("innerModuleEvaluation: module %s not singly on stack", m.Specifier)
	}
	if m.dfsAncestorIndex > m.dfsIndex {
		return 0, ecerrors.NewInvariantError("innerModuleEvaluation: ancestor index exceeds index for %s", m.Specifier)
	}

	if m.dfsAncestorIndex == m.dfsIndex {
		for {
			popped := stack.pop()
			if popped.AsyncEvaluation {
				popped.Status = EvaluatingAsync
			} else {
				popped.Status = Evaluated
			}
			popped.CycleRoot = m
			if popped == m {
				break
			}
		}
	}

	return index, nil
}

// runSyncBody calls Execute and folds a non-Normal completion into a
// *errors.JSException so the evaluation DFS propagates it like any other
// thrown error.
func (m *Module) runSyncBody() error {
	rec, err := m.Execute()
	if err != nil {
		return err
	}
	if rec.Type != completion.Normal {
		return &ecerrors.JSException{Value: rec.ValueOrDefault(values.Undefined)}
	}
	return nil
}

// Execute runs this module's compiled body synchronously to completion.
// It is only valid for a body with no top-level await that
// can actually park; HasTLA modules go through ExecuteAsync instead; a
// body that suspends here is an invariant violation.
func (m *Module) Execute() (completion.Record, error) {
	ctx := m.newExecContext()
	rec, err := m.list.Execute(ctx)
	if err != nil {
		return completion.Record{}, err
	}
	if rec.Suspended {
		return completion.Record{}, ecerrors.NewInvariantError(
			"module %s suspended outside ExecuteAsync", m.Specifier)
	}
	return rec, nil
}

// ExecuteAsync implements the ExecuteAsyncModule step: constructs a
// capability, attaches AsyncModuleExecutionFulfilled/Rejected to it via
// promise.OnSettle (the native-callback counterpart to performPromiseThen,
// since these reactions are never JS-visible handlers), then runs the body
// as a coroutine that reattaches itself to the continuation queue across
// every suspension until it completes or throws.
func (m *Module) ExecuteAsync() {
	cap := promise.NewCapability(m.graph.queue, m.graph.realm)
	promise.OnSettle(m.graph.queue, cap.Promise,
		func(values.Value) { asyncModuleExecutionFulfilled(m) },
		func(reason values.Value) { asyncModuleExecutionRejected(m, reason) },
	)
	m.stepBody(func(rec completion.Record, err error) {
		if err != nil {
			if jsErr, ok := err.(*ecerrors.JSException); ok {
				cap.Reject(jsErr.Value)
				return
			}
			cap.Reject(err.Error())
			return
		}
		if rec.Type != completion.Normal {
			cap.Reject(rec.ValueOrDefault(values.Undefined))
			return
		}
		cap.Resolve(values.Undefined)
	})
}

// stepBody runs one Execute pass over m's body; on suspension it registers
// a reaction on the pending promise via the continuation queue and resumes
// from the same point once it settles, without blocking the engine thread.
// done is called exactly once, when the body finally completes or throws.
func (m *Module) stepBody(done func(completion.Record, error)) {
	ctx := m.newExecContext()
	rec, err := m.list.Execute(ctx)
	if err != nil {
		done(completion.Record{}, err)
		return
	}
	if rec.Suspended {
		pending, ok := ctx.SuspendValue.(*promise.Promise)
		if !ok {
			done(completion.Record{}, ecerrors.NewInvariantError(
				"module %s suspended on a non-promise value", m.Specifier))
			return
		}
		promise.OnSettle(m.graph.queue, pending,
			func(v values.Value) {
				m.resumeValue = v
				m.resumeErr = nil
				m.stepBody(done)
			},
			func(reason values.Value) {
				m.resumeValue = nil
				m.resumeErr = &ecerrors.JSException{Value: reason}
				m.stepBody(done)
			},
		)
		return
	}
	done(rec, nil)
}

// newExecContext builds a fresh exec.Context for one Execute/stepBody pass,
// consuming and clearing any resume value stashed by a prior suspension.
func (m *Module) newExecContext() *exec.Context {
	ctx := &exec.Context{
		Evaluator:   m.graph.evaluator,
		Queue:       m.graph.queue,
		Realm:       m.graph.realm,
		Debug:       m.graph.config.Debug,
		Environment: m.Environment,
		ResumeValue: m.resumeValue,
		ResumeErr:   m.resumeErr,
	}
	m.resumeValue = nil
	m.resumeErr = nil
	return ctx
}

// asyncModuleExecutionFulfilled implements AsyncModuleExecutionFulfilled
// (ECMA-262 16.2.1.5.2.4): marks m Evaluated,
// resolves its topLevelCapability if any, then gathers and runs every
// ancestor whose pendingAsyncDependencies just reached zero, in
// asyncEvalOrder, so TLA chains initialize pre-order.
func asyncModuleExecutionFulfilled(m *Module) {
	if m.Status == Evaluated {
		// Already settled; AsyncModuleExecutionRejected must have run
		// first and recorded evalError; this is the idempotent no-op case.
		return
	}
	if m.Status != EvaluatingAsync {
		return
	}

	m.Status = Evaluated
	if m.TopLevelCapability != nil {
		m.TopLevelCapability.Resolve(values.Undefined)
	}

	var execList []*Module
	gatherAvailableAncestors(m, &execList)
	sort.SliceStable(execList, func(i, j int) bool {
		return execList[i].AsyncEvalOrder < execList[j].AsyncEvalOrder
	})

	for _, next := range execList {
		if next.Status == Evaluated {
			continue
		}
		if next.HasTLA {
			next.ExecuteAsync()
			continue
		}

		rec, err := next.Execute()
		if err != nil {
			if jsErr, ok := err.(*ecerrors.JSException); ok {
				asyncModuleExecutionRejected(next, jsErr.Value)
			} else {
				asyncModuleExecutionRejected(next, err.Error())
			}
			continue
		}
		if rec.Type != completion.Normal {
			asyncModuleExecutionRejected(next, rec.ValueOrDefault(values.Undefined))
			continue
		}

		next.Status = Evaluated
		if next.TopLevelCapability != nil {
			next.TopLevelCapability.Resolve(values.Undefined)
		}
	}
}

// gatherAvailableAncestors implements GatherAvailableAncestors:
// decrements each async parent's pendingAsyncDependencies; once a parent
// reaches zero and has not already errored, it is added to execList, and
// (unless it itself has TLA, in which case ExecuteAsync will drive it
// independently) recursed into for its own ancestors.
func gatherAvailableAncestors(m *Module, execList *[]*Module) {
	for _, parent := range m.AsyncParentModules {
		if parent.EvalError != nil {
			continue
		}
		parent.PendingAsyncDependencies--
		if parent.PendingAsyncDependencies == 0 {
			*execList = append(*execList, parent)
			if !parent.HasTLA {
				gatherAvailableAncestors(parent, execList)
			}
		}
	}
}

// asyncModuleExecutionRejected implements AsyncModuleExecutionRejected
// (ECMA-262 16.2.1.5.2.5): records m's
// evalError, marks it Evaluated, propagates the same error to every async
// parent (recursively), and rejects its topLevelCapability if any.
// Idempotent: a second call on an already-errored module is a no-op.
func asyncModuleExecutionRejected(m *Module, reason values.Value) {
	if m.Status == Evaluated && m.EvalError != nil {
		return
	}

	rec := completion.ThrowValue(reason, nil)
	m.EvalError = &rec
	m.Status = Evaluated

	for _, parent := range m.AsyncParentModules {
		asyncModuleExecutionRejected(parent, reason)
	}

	if m.TopLevelCapability != nil {
		m.TopLevelCapability.Reject(reason)
	}
}
