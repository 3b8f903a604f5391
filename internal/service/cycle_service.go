package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/roomledger/internal/lifecycle"
	"github.com/mmynk/roomledger/internal/report"
	"github.com/mmynk/roomledger/pkg/api"
)

// CycleService implements the CycleService RPC interface: expenses, cycle
// close, payments and history.
type CycleService struct {
	engine *lifecycle.Engine
	logger *slog.Logger
}

var _ api.CycleServiceHandler = (*CycleService)(nil)

// NewCycleService creates a CycleService backed by engine.
func NewCycleService(engine *lifecycle.Engine, logger *slog.Logger) *CycleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CycleService{engine: engine, logger: logger}
}

// RecordExpense adds an expense to the room's open cycle.
func (s *CycleService) RecordExpense(ctx context.Context, req *connect.Request[api.RecordExpenseRequest]) (*connect.Response[api.RecordExpenseResponse], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("RecordExpense request",
		"actor_id", actor.UserID,
		"room_id", req.Msg.RoomID,
		"amount", req.Msg.Amount.String(),
	)

	res, err := s.engine.RecordExpense(ctx, actor, req.Msg.RoomID, lifecycle.ExpenseInput{
		ItemName:   req.Msg.ItemName,
		Amount:     req.Msg.Amount,
		Category:   req.Msg.Category,
		OccurredAt: req.Msg.OccurredAt,
	})
	if err != nil {
		return nil, connectError(s.logger, "RecordExpense", err)
	}

	return connect.NewResponse(&api.RecordExpenseResponse{
		Expense:    toAPIExpense(res.Expense),
		CycleTotal: res.CycleTotal,
		Threshold:  res.Threshold,
		Crossed:    res.Crossed,
	}), nil
}

// CloseCycle finalizes the room's open cycle.
func (s *CycleService) CloseCycle(ctx context.Context, req *connect.Request[api.CloseCycleRequest]) (*connect.Response[api.CloseCycleResponse], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("CloseCycle request", "actor_id", actor.UserID, "room_id", req.Msg.RoomID, "reset_all", req.Msg.ResetAll)

	cycle, err := s.engine.CloseCycle(ctx, actor, req.Msg.RoomID, lifecycle.CloseOptions{ResetAll: req.Msg.ResetAll})
	if err != nil {
		return nil, connectError(s.logger, "CloseCycle", err)
	}
	return connect.NewResponse(&api.CloseCycleResponse{Cycle: toAPICycle(cycle)}), nil
}

// MarkMemberPaid records a member's payment.
func (s *CycleService) MarkMemberPaid(ctx context.Context, req *connect.Request[api.MarkMemberPaidRequest]) (*connect.Response[api.MarkMemberPaidResponse], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("MarkMemberPaid request", "actor_id", actor.UserID, "room_id", req.Msg.RoomID, "user_id", req.Msg.UserID)

	out, err := s.engine.MarkMemberPaid(ctx, actor, req.Msg.RoomID, req.Msg.UserID)
	if err != nil {
		return nil, connectError(s.logger, "MarkMemberPaid", err)
	}

	resp := &api.MarkMemberPaidResponse{Settled: out.Settled, CycleCreated: out.CycleCreated}
	if out.OpenCycle != nil {
		resp.OpenCycleID = out.OpenCycle.ID
	}
	return connect.NewResponse(resp), nil
}

// GetCycleSummary reports the open cycle and members' payment status.
func (s *CycleService) GetCycleSummary(ctx context.Context, req *connect.Request[api.RoomRequest]) (*connect.Response[api.GetCycleSummaryResponse], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := s.engine.GetCycleSummary(ctx, actor, req.Msg.RoomID)
	if err != nil {
		return nil, connectError(s.logger, "GetCycleSummary", err)
	}
	return connect.NewResponse(&api.GetCycleSummaryResponse{
		Room:        toAPIRoom(&summary.Room),
		Cycle:       toAPICycle(summary.Cycle),
		Total:       summary.Total,
		Members:     toAPIMembers(summary.Members),
		PaidCount:   summary.Paid,
		UnpaidCount: summary.Unpaid,
	}), nil
}

// ListCycles returns the room's cycle history.
func (s *CycleService) ListCycles(ctx context.Context, req *connect.Request[api.RoomRequest]) (*connect.Response[api.ListCyclesResponse], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	cycles, err := s.engine.ListCycles(ctx, actor, req.Msg.RoomID)
	if err != nil {
		return nil, connectError(s.logger, "ListCycles", err)
	}
	out := make([]api.Cycle, len(cycles))
	for i := range cycles {
		out[i] = *toAPICycle(&cycles[i])
	}
	return connect.NewResponse(&api.ListCyclesResponse{Cycles: out}), nil
}

// ListExpenses returns one cycle's expenses.
func (s *CycleService) ListExpenses(ctx context.Context, req *connect.Request[api.CycleRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	cycle, expenses, err := s.engine.ListExpenses(ctx, actor, req.Msg.RoomID, req.Msg.CycleID)
	if err != nil {
		return nil, connectError(s.logger, "ListExpenses", err)
	}
	out := make([]api.Expense, len(expenses))
	for i := range expenses {
		out[i] = *toAPIExpense(&expenses[i])
	}
	return connect.NewResponse(&api.ListExpensesResponse{Cycle: toAPICycle(cycle), Expenses: out}), nil
}

// ExportCycle renders a cycle as an XLSX workbook.
func (s *CycleService) ExportCycle(ctx context.Context, req *connect.Request[api.CycleRequest]) (*connect.Response[api.ExportCycleResponse], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("ExportCycle request", "actor_id", actor.UserID, "room_id", req.Msg.RoomID, "cycle_id", req.Msg.CycleID)

	r, err := s.engine.BuildCycleReport(ctx, actor, req.Msg.RoomID, req.Msg.CycleID)
	if err != nil {
		return nil, connectError(s.logger, "ExportCycle", err)
	}
	content, err := report.Render(r)
	if err != nil {
		return nil, connectError(s.logger, "ExportCycle", err)
	}

	return connect.NewResponse(&api.ExportCycleResponse{
		FileName:    report.FileName(r),
		ContentType: report.ContentType,
		Content:     content,
	}), nil
}
