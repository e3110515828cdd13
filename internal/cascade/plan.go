// Package cascade deletes an entity and everything that depends on it by
// running an ordered plan of steps inside one unit of work.
package cascade

import (
	"context"

	"github.com/kiranshivaraju/authgraph/internal/store"
)

// Op is what a step does to the rows it matches.
type Op string

const (
	OpDelete  Op = "delete"
	OpNullify Op = "nullify"
)

// Step is one table-level statement of a plan. Run returns the number of
// rows it affected.
type Step struct {
	Name  string
	Table string
	Op    Op
	Run   func(ctx context.Context, repos store.Repositories) (int64, error)
}

// Plan is an ordered list of steps. Steps run in order and each may rely on
// the state left by the ones before it.
type Plan struct {
	Name  string
	Steps []Step
}

// NewPlan starts an empty plan.
func NewPlan(name string) *Plan {
	return &Plan{Name: name}
}

// Append adds a step to the end of the plan.
func (p *Plan) Append(name, table string, op Op, run func(ctx context.Context, repos store.Repositories) (int64, error)) *Plan {
	p.Steps = append(p.Steps, Step{Name: name, Table: table, Op: op, Run: run})
	return p
}

// Extend appends every step of other, in order.
func (p *Plan) Extend(other *Plan) *Plan {
	p.Steps = append(p.Steps, other.Steps...)
	return p
}

// Tables lists the table touched by each step, in order.
func (p *Plan) Tables() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Table
	}
	return out
}
