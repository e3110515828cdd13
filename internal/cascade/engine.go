package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/authgraph/internal/apperr"
	"github.com/kiranshivaraju/authgraph/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("authgraph/cascade")

const (
	ModeTransactional = "transactional"
	ModeSequential    = "sequential"
)

// StepResult is the outcome of one executed step.
type StepResult struct {
	Step  string `json:"step"`
	Table string `json:"table"`
	Op    Op     `json:"op"`
	Rows  int64  `json:"rows"`
}

// Result describes an execution. Affected holds one entry per step that
// completed, in execution order.
type Result struct {
	Plan     string       `json:"plan"`
	Mode     string       `json:"mode"`
	Affected []StepResult `json:"affected"`
}

// Rows returns the total rows affected in table.
func (r *Result) Rows(table string) int64 {
	var n int64
	for _, a := range r.Affected {
		if a.Table == table {
			n += a.Rows
		}
	}
	return n
}

// StepError reports which step of a plan failed.
type StepError struct {
	Plan string
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("cascade %s: step %s: %v", e.Plan, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Engine executes plans.
type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

func modeOf(uow store.UnitOfWork) string {
	if uow.Transactional() {
		return ModeTransactional
	}
	return ModeSequential
}

// Execute runs every step of plan, in order, inside one unit of work. The
// first failing step stops the plan and the unit of work is rolled back; in
// sequential mode that leaves earlier steps applied. Errors that carry no
// apperr kind come back as Internal.
func (e *Engine) Execute(ctx context.Context, uow store.UnitOfWork, plan *Plan) (*Result, error) {
	res := &Result{Plan: plan.Name, Mode: modeOf(uow)}
	start := time.Now()

	ctx, span := tracer.Start(ctx, "cascade."+plan.Name,
		trace.WithAttributes(
			attribute.String("cascade.plan", plan.Name),
			attribute.String("cascade.mode", res.Mode),
			attribute.Int("cascade.steps", len(plan.Steps)),
		),
	)
	defer span.End()

	err := e.run(ctx, uow, plan, res, span)
	recordExecution(res, err, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cascade failed")
		e.logger.Error("cascade failed",
			"plan", plan.Name,
			"mode", res.Mode,
			"completed_steps", len(res.Affected),
			"error", err,
		)
		return res, classify(err)
	}

	e.logger.Info("cascade committed",
		"plan", plan.Name,
		"mode", res.Mode,
		"affected", res.Affected,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (e *Engine) run(ctx context.Context, uow store.UnitOfWork, plan *Plan, res *Result, span trace.Span) error {
	tx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}
	repos := tx.Repositories()

	for _, step := range plan.Steps {
		n, err := step.Run(ctx, repos)
		if err != nil {
			stepErr := &StepError{Plan: plan.Name, Step: step.Name, Err: err}
			if rErr := tx.Rollback(ctx); rErr != nil {
				return errors.Join(stepErr, rErr)
			}
			return stepErr
		}
		res.Affected = append(res.Affected, StepResult{Step: step.Name, Table: step.Table, Op: step.Op, Rows: n})
		span.AddEvent(step.Name, trace.WithAttributes(
			attribute.String("cascade.table", step.Table),
			attribute.String("cascade.op", string(step.Op)),
			attribute.Int64("cascade.rows", n),
		))
	}

	return tx.Commit(ctx)
}

func classify(err error) error {
	var typed *apperr.Error
	if errors.As(err, &typed) {
		return err
	}
	return apperr.Internal(err, "Failed to delete dependent records")
}
