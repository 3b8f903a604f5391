package api

import "github.com/shopspring/decimal"

// Amounts are decimal strings on the wire ("12.50").

type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	CreatedAt   int64  `json:"createdAt"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by Register and Login.
type AuthResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type Room struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Threshold decimal.Decimal `json:"threshold"`
	AdminID   string          `json:"adminId"`
	IsBanned  bool            `json:"isBanned"`
	CreatedAt int64           `json:"createdAt"`
}

type Member struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	Email         string `json:"email"`
	PaymentStatus string `json:"paymentStatus"`
	JoinedAt      int64  `json:"joinedAt"`
}

type Cycle struct {
	ID          string          `json:"id"`
	RoomID      string          `json:"roomId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	IsFrozen    bool            `json:"isFrozen"`
	IsClosed    bool            `json:"isClosed"`
	ClosedAt    int64           `json:"closedAt,omitempty"`
	CreatedAt   int64           `json:"createdAt"`
}

type Expense struct {
	ID        string          `json:"id"`
	CycleID   string          `json:"cycleId"`
	ItemName  string          `json:"itemName"`
	Amount    decimal.Decimal `json:"amount"`
	Category  string          `json:"category"`
	AddedByID string          `json:"addedById"`
	CreatedAt int64           `json:"createdAt"`
}

type Notification struct {
	ID        string `json:"id"`
	RoomID    string `json:"roomId,omitempty"`
	Content   string `json:"content"`
	Severity  string `json:"severity"`
	Read      bool   `json:"read"`
	CreatedAt int64  `json:"createdAt"`
}

// Room service

type CreateRoomRequest struct {
	Title     string          `json:"title"`
	Threshold decimal.Decimal `json:"threshold"`
}

type RoomResponse struct {
	Room *Room `json:"room"`
}

type RoomRequest struct {
	RoomID string `json:"roomId"`
}

type GetRoomResponse struct {
	Room    *Room    `json:"room"`
	Members []Member `json:"members"`
}

type UpdateThresholdRequest struct {
	RoomID    string          `json:"roomId"`
	Threshold decimal.Decimal `json:"threshold"`
}

type AddMemberRequest struct {
	RoomID string `json:"roomId"`
	Email  string `json:"email"`
}

type AddMemberResponse struct {
	Member *Member `json:"member"`
}

type RemoveMemberRequest struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type BanRoomRequest struct {
	RoomID string `json:"roomId"`
	Banned bool   `json:"banned"`
}

type DeleteRoomRequest struct {
	RoomID             string `json:"roomId"`
	DeleteAdminAccount bool   `json:"deleteAdminAccount"`
}

type ListNotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
}

// Cycle service

type RecordExpenseRequest struct {
	RoomID     string          `json:"roomId"`
	ItemName   string          `json:"itemName"`
	Amount     decimal.Decimal `json:"amount"`
	Category   string          `json:"category,omitempty"`
	OccurredAt int64           `json:"occurredAt,omitempty"`
}

type RecordExpenseResponse struct {
	Expense    *Expense        `json:"expense"`
	CycleTotal decimal.Decimal `json:"cycleTotal"`
	Threshold  decimal.Decimal `json:"threshold"`
	Crossed    bool            `json:"crossed"`
}

type CloseCycleRequest struct {
	RoomID   string `json:"roomId"`
	ResetAll bool   `json:"resetAll"`
}

type CloseCycleResponse struct {
	Cycle *Cycle `json:"cycle"`
}

type MarkMemberPaidRequest struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type MarkMemberPaidResponse struct {
	Settled      bool   `json:"settled"`
	CycleCreated bool   `json:"cycleCreated"`
	OpenCycleID  string `json:"openCycleId,omitempty"`
}

type GetCycleSummaryResponse struct {
	Room        *Room           `json:"room"`
	Cycle       *Cycle          `json:"cycle,omitempty"`
	Total       decimal.Decimal `json:"total"`
	Members     []Member        `json:"members"`
	PaidCount   int             `json:"paidCount"`
	UnpaidCount int             `json:"unpaidCount"`
}

type ListCyclesResponse struct {
	Cycles []Cycle `json:"cycles"`
}

// CycleRequest addresses one cycle of a room. An empty CycleID means the
// open cycle.
type CycleRequest struct {
	RoomID  string `json:"roomId"`
	CycleID string `json:"cycleId,omitempty"`
}

type ListExpensesResponse struct {
	Cycle    *Cycle    `json:"cycle"`
	Expenses []Expense `json:"expenses"`
}

type ExportCycleResponse struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Content     []byte `json:"content"`
}
