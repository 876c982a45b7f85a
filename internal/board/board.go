// Package board builds the per-day booking board and keeps it fresh for
// display surfaces.
package board

import (
	"context"
	"sort"
	"time"

	"github.com/zulandar/scrutineer/internal/models"
	"github.com/zulandar/scrutineer/internal/store"
)

// Source is the read side the board needs.
type Source interface {
	ListInspectionTypes(ctx context.Context, order store.TypeOrder) ([]models.InspectionType, error)
	ListBookings(ctx context.Context, f store.BookingFilter) ([]models.Booking, error)
}

// Entry is one booking as shown on the board.
type Entry struct {
	BookingID         uint   `json:"booking_id"`
	TeamID            uint   `json:"team_id"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	Lane              int    `json:"lane"`
	Status            string `json:"status"`
	IsRescrutineering bool   `json:"is_rescrutineering"`
}

// Column is one inspection type's bookings for the day.
type Column struct {
	TypeID  uint    `json:"type_id"`
	Key     string  `json:"key"`
	Name    string  `json:"name"`
	Lanes   int     `json:"lanes"`
	Entries []Entry `json:"entries"`
}

// Snapshot is the whole board for one date.
type Snapshot struct {
	Date    string    `json:"date"`
	TakenAt time.Time `json:"taken_at"`
	Columns []Column  `json:"columns"`
}

// Build lays out bookings by inspection type. Cancelled bookings are left
// off. Entries are ordered by start time, then lane.
func Build(date string, types []models.InspectionType, bookings []models.Booking, at time.Time) Snapshot {
	byType := make(map[uint][]Entry)
	for _, b := range bookings {
		if b.Date != date || b.Status == models.BookingCancelled {
			continue
		}
		byType[b.InspectionTypeID] = append(byType[b.InspectionTypeID], Entry{
			BookingID:         b.ID,
			TeamID:            b.TeamID,
			StartTime:         b.StartTime,
			EndTime:           b.EndTime,
			Lane:              b.ResourceIndex,
			Status:            b.Status,
			IsRescrutineering: b.IsRescrutineering,
		})
	}

	snap := Snapshot{Date: date, TakenAt: at, Columns: make([]Column, 0, len(types))}
	for _, t := range types {
		if !t.Active {
			continue
		}
		entries := byType[t.ID]
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].StartTime != entries[j].StartTime {
				return entries[i].StartTime < entries[j].StartTime
			}
			return entries[i].Lane < entries[j].Lane
		})
		if entries == nil {
			entries = []Entry{}
		}
		snap.Columns = append(snap.Columns, Column{
			TypeID:  t.ID,
			Key:     t.Key,
			Name:    t.Name,
			Lanes:   t.ConcurrentSlots,
			Entries: entries,
		})
	}
	return snap
}

// Load reads the board for date from src.
func Load(ctx context.Context, src Source, date string, at time.Time) (Snapshot, error) {
	types, err := src.ListInspectionTypes(ctx, store.OrderBySortOrder)
	if err != nil {
		return Snapshot{}, err
	}
	bookings, err := src.ListBookings(ctx, store.BookingFilter{Date: date})
	if err != nil {
		return Snapshot{}, err
	}
	return Build(date, types, bookings, at), nil
}
