package executor

import (
	"testing"

	"github.com/aleksaelezovic/trigo/internal/sparql/optimizer"
	"github.com/aleksaelezovic/trigo/internal/sparql/parser"
)

// chainOfJoins builds a left-leaning chain of n JoinPlan nodes over scan
// leaves, i.e. planDepth of the result is exactly n.
func chainOfJoins(n int) optimizer.QueryPlan {
	var plan optimizer.QueryPlan = &optimizer.ScanPlan{Pattern: &parser.TriplePattern{}}
	for i := 0; i < n; i++ {
		plan = &optimizer.JoinPlan{
			Left:  plan,
			Right: &optimizer.ScanPlan{Pattern: &parser.TriplePattern{}},
			Type:  optimizer.JoinTypeNestedLoop,
		}
	}
	return plan
}

func TestPlanDepthCountsBinaryNodesOnly(t *testing.T) {
	if got := planDepth(chainOfJoins(5)); got != 5 {
		t.Fatalf("expected depth 5, got %d", got)
	}

	wrapped := &optimizer.LimitPlan{
		Input: &optimizer.FilterPlan{
			Input: &optimizer.ProjectionPlan{
				Input: chainOfJoins(3),
			},
		},
	}
	if got := planDepth(wrapped); got != 3 {
		t.Fatalf("expected unary wrappers to not add depth, got %d", got)
	}

	if got := planDepth(nil); got != 0 {
		t.Fatalf("expected nil plan to have depth 0, got %d", got)
	}
}

// TestExecuteRejectsJoinDepthBeyondMaximum checks the guard at the top of
// Execute directly: a plan at the configured maximum must pass the check
// (and fall through to normal execution), one deeper must be rejected before
// any iterator is built. Execution past the guard is not exercised here,
// since that requires a real store.
func TestExecuteRejectsJoinDepthBeyondMaximum(t *testing.T) {
	e := &Executor{maxJoinDepth: DefaultMaxJoinDepth}

	atLimit := chainOfJoins(DefaultMaxJoinDepth)
	if depth := planDepth(atLimit); depth > e.maxJoinDepth {
		t.Fatalf("a plan at the configured maximum must not be rejected by the guard, got depth %d", depth)
	}

	overLimit := &optimizer.OptimizedQuery{
		Original: &parser.Query{QueryType: parser.QueryTypeSelect, Select: &parser.SelectQuery{}},
		Plan:     chainOfJoins(DefaultMaxJoinDepth + 1),
	}
	_, err := e.Execute(overLimit)
	if err == nil {
		t.Fatal("expected an error for a plan exceeding the maximum join depth")
	}
}
