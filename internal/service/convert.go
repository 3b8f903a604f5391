package service

import (
	"github.com/mmynk/roomledger/internal/models"
	"github.com/mmynk/roomledger/pkg/api"
)

func toAPIUser(u *models.User) *api.User {
	return &api.User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		CreatedAt:   u.CreatedAt,
	}
}

func toAPIRoom(r *models.Room) *api.Room {
	return &api.Room{
		ID:        r.ID,
		Title:     r.Title,
		Threshold: r.Threshold,
		AdminID:   r.AdminID,
		IsBanned:  r.IsBanned,
		CreatedAt: r.CreatedAt,
	}
}

func toAPIMember(m *models.Member) *api.Member {
	return &api.Member{
		UserID:        m.UserID,
		DisplayName:   m.DisplayName,
		Email:         m.Email,
		PaymentStatus: string(m.PaymentStatus),
		JoinedAt:      m.JoinedAt,
	}
}

func toAPIMembers(members []models.Member) []api.Member {
	out := make([]api.Member, len(members))
	for i := range members {
		out[i] = *toAPIMember(&members[i])
	}
	return out
}

func toAPICycle(c *models.Cycle) *api.Cycle {
	if c == nil {
		return nil
	}
	return &api.Cycle{
		ID:          c.ID,
		RoomID:      c.RoomID,
		TotalAmount: c.TotalAmount,
		IsFrozen:    c.IsFrozen,
		IsClosed:    c.IsClosed,
		ClosedAt:    c.ClosedAt,
		CreatedAt:   c.CreatedAt,
	}
}

func toAPIExpense(e *models.Expense) *api.Expense {
	return &api.Expense{
		ID:        e.ID,
		CycleID:   e.CycleID,
		ItemName:  e.ItemName,
		Amount:    e.Amount,
		Category:  e.Category,
		AddedByID: e.AddedByID,
		CreatedAt: e.CreatedAt,
	}
}

func toAPINotification(n *models.Notification) *api.Notification {
	return &api.Notification{
		ID:        n.ID,
		RoomID:    n.RoomID,
		Content:   n.Content,
		Severity:  string(n.Severity),
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}
