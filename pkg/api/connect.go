package api

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
)

const (
	AuthServiceName  = "roomledger.v1.AuthService"
	RoomServiceName  = "roomledger.v1.RoomService"
	CycleServiceName = "roomledger.v1.CycleService"
)

const (
	AuthServiceRegisterProcedure = "/roomledger.v1.AuthService/Register"
	AuthServiceLoginProcedure    = "/roomledger.v1.AuthService/Login"

	RoomServiceCreateRoomProcedure        = "/roomledger.v1.RoomService/CreateRoom"
	RoomServiceGetRoomProcedure           = "/roomledger.v1.RoomService/GetRoom"
	RoomServiceUpdateThresholdProcedure   = "/roomledger.v1.RoomService/UpdateThreshold"
	RoomServiceAddMemberProcedure         = "/roomledger.v1.RoomService/AddMember"
	RoomServiceRemoveMemberProcedure      = "/roomledger.v1.RoomService/RemoveMember"
	RoomServiceBanRoomProcedure           = "/roomledger.v1.RoomService/BanRoom"
	RoomServiceDeleteRoomProcedure        = "/roomledger.v1.RoomService/DeleteRoom"
	RoomServiceListNotificationsProcedure = "/roomledger.v1.RoomService/ListNotifications"

	CycleServiceRecordExpenseProcedure   = "/roomledger.v1.CycleService/RecordExpense"
	CycleServiceCloseCycleProcedure      = "/roomledger.v1.CycleService/CloseCycle"
	CycleServiceMarkMemberPaidProcedure  = "/roomledger.v1.CycleService/MarkMemberPaid"
	CycleServiceGetCycleSummaryProcedure = "/roomledger.v1.CycleService/GetCycleSummary"
	CycleServiceListCyclesProcedure      = "/roomledger.v1.CycleService/ListCycles"
	CycleServiceListExpensesProcedure    = "/roomledger.v1.CycleService/ListExpenses"
	CycleServiceExportCycleProcedure     = "/roomledger.v1.CycleService/ExportCycle"
)

// IsAPIPath reports whether path addresses one of the roomledger.v1 services.
func IsAPIPath(path string) bool {
	return strings.HasPrefix(path, "/roomledger.v1.")
}

// Empty is the request or response of procedures without a payload.
type Empty = emptypb.Empty

// AuthServiceHandler is implemented by the auth service.
type AuthServiceHandler interface {
	Register(context.Context, *connect.Request[RegisterRequest]) (*connect.Response[AuthResponse], error)
	Login(context.Context, *connect.Request[LoginRequest]) (*connect.Response[AuthResponse], error)
}

// RoomServiceHandler is implemented by the room service.
type RoomServiceHandler interface {
	CreateRoom(context.Context, *connect.Request[CreateRoomRequest]) (*connect.Response[RoomResponse], error)
	GetRoom(context.Context, *connect.Request[RoomRequest]) (*connect.Response[GetRoomResponse], error)
	UpdateThreshold(context.Context, *connect.Request[UpdateThresholdRequest]) (*connect.Response[RoomResponse], error)
	AddMember(context.Context, *connect.Request[AddMemberRequest]) (*connect.Response[AddMemberResponse], error)
	RemoveMember(context.Context, *connect.Request[RemoveMemberRequest]) (*connect.Response[Empty], error)
	BanRoom(context.Context, *connect.Request[BanRoomRequest]) (*connect.Response[Empty], error)
	DeleteRoom(context.Context, *connect.Request[DeleteRoomRequest]) (*connect.Response[Empty], error)
	ListNotifications(context.Context, *connect.Request[Empty]) (*connect.Response[ListNotificationsResponse], error)
}

// CycleServiceHandler is implemented by the cycle service.
type CycleServiceHandler interface {
	RecordExpense(context.Context, *connect.Request[RecordExpenseRequest]) (*connect.Response[RecordExpenseResponse], error)
	CloseCycle(context.Context, *connect.Request[CloseCycleRequest]) (*connect.Response[CloseCycleResponse], error)
	MarkMemberPaid(context.Context, *connect.Request[MarkMemberPaidRequest]) (*connect.Response[MarkMemberPaidResponse], error)
	GetCycleSummary(context.Context, *connect.Request[RoomRequest]) (*connect.Response[GetCycleSummaryResponse], error)
	ListCycles(context.Context, *connect.Request[RoomRequest]) (*connect.Response[ListCyclesResponse], error)
	ListExpenses(context.Context, *connect.Request[CycleRequest]) (*connect.Response[ListExpensesResponse], error)
	ExportCycle(context.Context, *connect.Request[CycleRequest]) (*connect.Response[ExportCycleResponse], error)
}

func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{WithCodec()}, opts...)
}

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{WithCodec()}, opts...)
}

// routes dispatches on the request path to one handler per procedure.
func routes(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// NewAuthServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewAuthServiceHandler(svc AuthServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return "/" + AuthServiceName + "/", routes(map[string]http.Handler{
		AuthServiceRegisterProcedure: connect.NewUnaryHandler(AuthServiceRegisterProcedure, svc.Register, opts...),
		AuthServiceLoginProcedure:    connect.NewUnaryHandler(AuthServiceLoginProcedure, svc.Login, opts...),
	})
}

// NewRoomServiceHandler builds an HTTP handler from the service
// implementation.
func NewRoomServiceHandler(svc RoomServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return "/" + RoomServiceName + "/", routes(map[string]http.Handler{
		RoomServiceCreateRoomProcedure:        connect.NewUnaryHandler(RoomServiceCreateRoomProcedure, svc.CreateRoom, opts...),
		RoomServiceGetRoomProcedure:           connect.NewUnaryHandler(RoomServiceGetRoomProcedure, svc.GetRoom, opts...),
		RoomServiceUpdateThresholdProcedure:   connect.NewUnaryHandler(RoomServiceUpdateThresholdProcedure, svc.UpdateThreshold, opts...),
		RoomServiceAddMemberProcedure:         connect.NewUnaryHandler(RoomServiceAddMemberProcedure, svc.AddMember, opts...),
		RoomServiceRemoveMemberProcedure:      connect.NewUnaryHandler(RoomServiceRemoveMemberProcedure, svc.RemoveMember, opts...),
		RoomServiceBanRoomProcedure:           connect.NewUnaryHandler(RoomServiceBanRoomProcedure, svc.BanRoom, opts...),
		RoomServiceDeleteRoomProcedure:        connect.NewUnaryHandler(RoomServiceDeleteRoomProcedure, svc.DeleteRoom, opts...),
		RoomServiceListNotificationsProcedure: connect.NewUnaryHandler(RoomServiceListNotificationsProcedure, svc.ListNotifications, opts...),
	})
}

// NewCycleServiceHandler builds an HTTP handler from the service
// implementation.
func NewCycleServiceHandler(svc CycleServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return "/" + CycleServiceName + "/", routes(map[string]http.Handler{
		CycleServiceRecordExpenseProcedure:   connect.NewUnaryHandler(CycleServiceRecordExpenseProcedure, svc.RecordExpense, opts...),
		CycleServiceCloseCycleProcedure:      connect.NewUnaryHandler(CycleServiceCloseCycleProcedure, svc.CloseCycle, opts...),
		CycleServiceMarkMemberPaidProcedure:  connect.NewUnaryHandler(CycleServiceMarkMemberPaidProcedure, svc.MarkMemberPaid, opts...),
		CycleServiceGetCycleSummaryProcedure: connect.NewUnaryHandler(CycleServiceGetCycleSummaryProcedure, svc.GetCycleSummary, opts...),
		CycleServiceListCyclesProcedure:      connect.NewUnaryHandler(CycleServiceListCyclesProcedure, svc.ListCycles, opts...),
		CycleServiceListExpensesProcedure:    connect.NewUnaryHandler(CycleServiceListExpensesProcedure, svc.ListExpenses, opts...),
		CycleServiceExportCycleProcedure:     connect.NewUnaryHandler(CycleServiceExportCycleProcedure, svc.ExportCycle, opts...),
	})
}

// AuthServiceClient calls the auth service.
type AuthServiceClient struct {
	register *connect.Client[RegisterRequest, AuthResponse]
	login    *connect.Client[LoginRequest, AuthResponse]
}

// NewAuthServiceClient creates a client for the auth service at baseURL.
func NewAuthServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AuthServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &AuthServiceClient{
		register: connect.NewClient[RegisterRequest, AuthResponse](httpClient, baseURL+AuthServiceRegisterProcedure, opts...),
		login:    connect.NewClient[LoginRequest, AuthResponse](httpClient, baseURL+AuthServiceLoginProcedure, opts...),
	}
}

func (c *AuthServiceClient) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[AuthResponse], error) {
	return c.register.CallUnary(ctx, req)
}

func (c *AuthServiceClient) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[AuthResponse], error) {
	return c.login.CallUnary(ctx, req)
}

// RoomServiceClient calls the room service.
type RoomServiceClient struct {
	createRoom        *connect.Client[CreateRoomRequest, RoomResponse]
	getRoom           *connect.Client[RoomRequest, GetRoomResponse]
	updateThreshold   *connect.Client[UpdateThresholdRequest, RoomResponse]
	addMember         *connect.Client[AddMemberRequest, AddMemberResponse]
	removeMember      *connect.Client[RemoveMemberRequest, Empty]
	banRoom           *connect.Client[BanRoomRequest, Empty]
	deleteRoom        *connect.Client[DeleteRoomRequest, Empty]
	listNotifications *connect.Client[Empty, ListNotificationsResponse]
}

// NewRoomServiceClient creates a client for the room service at baseURL.
func NewRoomServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *RoomServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &RoomServiceClient{
		createRoom:        connect.NewClient[CreateRoomRequest, RoomResponse](httpClient, baseURL+RoomServiceCreateRoomProcedure, opts...),
		getRoom:           connect.NewClient[RoomRequest, GetRoomResponse](httpClient, baseURL+RoomServiceGetRoomProcedure, opts...),
		updateThreshold:   connect.NewClient[UpdateThresholdRequest, RoomResponse](httpClient, baseURL+RoomServiceUpdateThresholdProcedure, opts...),
		addMember:         connect.NewClient[AddMemberRequest, AddMemberResponse](httpClient, baseURL+RoomServiceAddMemberProcedure, opts...),
		removeMember:      connect.NewClient[RemoveMemberRequest, Empty](httpClient, baseURL+RoomServiceRemoveMemberProcedure, opts...),
		banRoom:           connect.NewClient[BanRoomRequest, Empty](httpClient, baseURL+RoomServiceBanRoomProcedure, opts...),
		deleteRoom:        connect.NewClient[DeleteRoomRequest, Empty](httpClient, baseURL+RoomServiceDeleteRoomProcedure, opts...),
		listNotifications: connect.NewClient[Empty, ListNotificationsResponse](httpClient, baseURL+RoomServiceListNotificationsProcedure, opts...),
	}
}

func (c *RoomServiceClient) CreateRoom(ctx context.Context, req *connect.Request[CreateRoomRequest]) (*connect.Response[RoomResponse], error) {
	return c.createRoom.CallUnary(ctx, req)
}

func (c *RoomServiceClient) GetRoom(ctx context.Context, req *connect.Request[RoomRequest]) (*connect.Response[GetRoomResponse], error) {
	return c.getRoom.CallUnary(ctx, req)
}

func (c *RoomServiceClient) UpdateThreshold(ctx context.Context, req *connect.Request[UpdateThresholdRequest]) (*connect.Response[RoomResponse], error) {
	return c.updateThreshold.CallUnary(ctx, req)
}

func (c *RoomServiceClient) AddMember(ctx context.Context, req *connect.Request[AddMemberRequest]) (*connect.Response[AddMemberResponse], error) {
	return c.addMember.CallUnary(ctx, req)
}

func (c *RoomServiceClient) RemoveMember(ctx context.Context, req *connect.Request[RemoveMemberRequest]) (*connect.Response[Empty], error) {
	return c.removeMember.CallUnary(ctx, req)
}

func (c *RoomServiceClient) BanRoom(ctx context.Context, req *connect.Request[BanRoomRequest]) (*connect.Response[Empty], error) {
	return c.banRoom.CallUnary(ctx, req)
}

func (c *RoomServiceClient) DeleteRoom(ctx context.Context, req *connect.Request[DeleteRoomRequest]) (*connect.Response[Empty], error) {
	return c.deleteRoom.CallUnary(ctx, req)
}

func (c *RoomServiceClient) ListNotifications(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ListNotificationsResponse], error) {
	return c.listNotifications.CallUnary(ctx, req)
}

// CycleServiceClient calls the cycle service.
type CycleServiceClient struct {
	recordExpense   *connect.Client[RecordExpenseRequest, RecordExpenseResponse]
	closeCycle      *connect.Client[CloseCycleRequest, CloseCycleResponse]
	markMemberPaid  *connect.Client[MarkMemberPaidRequest, MarkMemberPaidResponse]
	getCycleSummary *connect.Client[RoomRequest, GetCycleSummaryResponse]
	listCycles      *connect.Client[RoomRequest, ListCyclesResponse]
	listExpenses    *connect.Client[CycleRequest, ListExpensesResponse]
	exportCycle     *connect.Client[CycleRequest, ExportCycleResponse]
}

// NewCycleServiceClient creates a client for the cycle service at baseURL.
func NewCycleServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *CycleServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &CycleServiceClient{
		recordExpense:   connect.NewClient[RecordExpenseRequest, RecordExpenseResponse](httpClient, baseURL+CycleServiceRecordExpenseProcedure, opts...),
		closeCycle:      connect.NewClient[CloseCycleRequest, CloseCycleResponse](httpClient, baseURL+CycleServiceCloseCycleProcedure, opts...),
		markMemberPaid:  connect.NewClient[MarkMemberPaidRequest, MarkMemberPaidResponse](httpClient, baseURL+CycleServiceMarkMemberPaidProcedure, opts...),
		getCycleSummary: connect.NewClient[RoomRequest, GetCycleSummaryResponse](httpClient, baseURL+CycleServiceGetCycleSummaryProcedure, opts...),
		listCycles:      connect.NewClient[RoomRequest, ListCyclesResponse](httpClient, baseURL+CycleServiceListCyclesProcedure, opts...),
		listExpenses:    connect.NewClient[CycleRequest, ListExpensesResponse](httpClient, baseURL+CycleServiceListExpensesProcedure, opts...),
		exportCycle:     connect.NewClient[CycleRequest, ExportCycleResponse](httpClient, baseURL+CycleServiceExportCycleProcedure, opts...),
	}
}

func (c *CycleServiceClient) RecordExpense(ctx context.Context, req *connect.Request[RecordExpenseRequest]) (*connect.Response[RecordExpenseResponse], error) {
	return c.recordExpense.CallUnary(ctx, req)
}

func (c *CycleServiceClient) CloseCycle(ctx context.Context, req *connect.Request[CloseCycleRequest]) (*connect.Response[CloseCycleResponse], error) {
	return c.closeCycle.CallUnary(ctx, req)
}

func (c *CycleServiceClient) MarkMemberPaid(ctx context.Context, req *connect.Request[MarkMemberPaidRequest]) (*connect.Response[MarkMemberPaidResponse], error) {
	return c.markMemberPaid.CallUnary(ctx, req)
}

func (c *CycleServiceClient) GetCycleSummary(ctx context.Context, req *connect.Request[RoomRequest]) (*connect.Response[GetCycleSummaryResponse], error) {
	return c.getCycleSummary.CallUnary(ctx, req)
}

func (c *CycleServiceClient) ListCycles(ctx context.Context, req *connect.Request[RoomRequest]) (*connect.Response[ListCyclesResponse], error) {
	return c.listCycles.CallUnary(ctx, req)
}

func (c *CycleServiceClient) ListExpenses(ctx context.Context, req *connect.Request[CycleRequest]) (*connect.Response[ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *CycleServiceClient) ExportCycle(ctx context.Context, req *connect.Request[CycleRequest]) (*connect.Response[ExportCycleResponse], error) {
	return c.exportCycle.CallUnary(ctx, req)
}
