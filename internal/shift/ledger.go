package shift

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kasirkita/backend-kasir/internal/common"
	"github.com/kasirkita/backend-kasir/internal/pricing"
)

// Sentinel errors for shift state machine violations.
var (
	ErrNoActiveShift      = errors.New("shift: no active shift")
	ErrShiftAlreadyOpen   = errors.New("shift: shift already open")
	ErrShiftAlreadyClosed = errors.New("shift: shift already closed")
	ErrInvalidCash        = errors.New("shift: cash amount must not be negative")
)

// NoActiveShiftError returns the user-facing error for operations that
// require an open shift.
func NoActiveShiftError() *common.AppError {
	return common.NewAppError("NO_ACTIVE_SHIFT", "belum ada shift yang dibuka, silakan buka shift terlebih dahulu", http.StatusConflict, ErrNoActiveShift)
}

// AlreadyOpenError returns the user-facing error for opening a second shift.
func AlreadyOpenError() *common.AppError {
	return common.NewAppError("SHIFT_ALREADY_OPEN", "masih ada shift yang terbuka untuk kasir ini", http.StatusConflict, ErrShiftAlreadyOpen)
}

// AlreadyClosedError returns the user-facing error for closing twice.
func AlreadyClosedError() *common.AppError {
	return common.NewAppError("SHIFT_ALREADY_CLOSED", "shift sudah ditutup", http.StatusConflict, ErrShiftAlreadyClosed)
}

// Status enumerates the shift lifecycle. The only transition is
// open to closed, one way.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Shift is one bounded cashier work session bracketed by opening and
// closing cash counts.
type Shift struct {
	ID                uuid.UUID     `json:"id"`
	TenantID          string        `json:"tenantId"`
	CashierID         string        `json:"cashierId"`
	CashierName       string        `json:"cashierName"`
	StartedAt         time.Time     `json:"startedAt"`
	EndedAt           *time.Time    `json:"endedAt,omitempty"`
	StartingCash      pricing.Money `json:"startingCash"`
	TotalSales        pricing.Money `json:"totalSales"`
	TotalTransactions int64         `json:"totalTransactions"`
	CashSales         pricing.Money `json:"cashSales"`
	NonCashSales      pricing.Money `json:"nonCashSales"`
	CashCount         int64         `json:"cashCount"`
	NonCashCount      int64         `json:"nonCashCount"`
	Status            Status        `json:"status"`
	ExpectedCash      pricing.Money `json:"expectedCash"`
	ActualCash        pricing.Money `json:"actualCash"`
	Variance          pricing.Money `json:"variance"`
	Notes             string        `json:"notes,omitempty"`
}

// Entry is the portion of a completed transaction the ledger records.
// Total and CashPortion are negative for refunds.
type Entry struct {
	Total       pricing.Money
	CashPortion pricing.Money
}

// Open starts a new shift for the cashier. Uniqueness of the open shift
// per cashier is enforced by the persistence collaborator; this
// constructor only validates its own inputs.
func Open(tenantID, cashierID, cashierName string, startingCash pricing.Money, now time.Time) (*Shift, error) {
	if strings.TrimSpace(cashierID) == "" {
		return nil, common.NewAppError("VALIDATION", "kasir tidak dikenal", http.StatusBadRequest, nil)
	}
	if startingCash < 0 {
		return nil, common.NewAppError("VALIDATION", "kas awal tidak boleh negatif", http.StatusBadRequest, ErrInvalidCash)
	}
	return &Shift{
		ID:           uuid.New(),
		TenantID:     tenantID,
		CashierID:    cashierID,
		CashierName:  cashierName,
		StartedAt:    now,
		StartingCash: startingCash,
		Status:       StatusOpen,
	}, nil
}

// Record accumulates a completed transaction into the open shift.
// Refunds carry negative amounts and decrement the running totals.
func (s *Shift) Record(e Entry) error {
	if s == nil {
		return NoActiveShiftError()
	}
	if s.Status != StatusOpen {
		return AlreadyClosedError()
	}
	s.TotalTransactions++
	s.TotalSales += e.Total
	s.CashSales += e.CashPortion
	s.NonCashSales += e.Total - e.CashPortion
	if e.CashPortion == e.Total {
		s.CashCount++
	} else {
		s.NonCashCount++
	}
	return nil
}

// Close reconciles the counted drawer against the expectation and
// transitions the shift to closed. Closing twice is an error; the shift
// is immutable afterwards except for appended notes.
func (s *Shift) Close(actualCash pricing.Money, notes string, now time.Time) error {
	if s == nil {
		return NoActiveShiftError()
	}
	if s.Status == StatusClosed {
		return AlreadyClosedError()
	}
	if actualCash < 0 {
		return common.NewAppError("VALIDATION", "kas akhir tidak boleh negatif", http.StatusBadRequest, ErrInvalidCash)
	}
	s.ExpectedCash = s.StartingCash + s.CashSales
	s.ActualCash = actualCash
	s.Variance = actualCash - s.ExpectedCash
	s.EndedAt = &now
	s.Status = StatusClosed
	if strings.TrimSpace(notes) != "" {
		s.Notes = notes
	}
	return nil
}

// Summary is the shift report handed to the reporting collaborator.
type Summary struct {
	ShiftID            uuid.UUID     `json:"shiftId"`
	CashierID          string        `json:"cashierId"`
	CashierName        string        `json:"cashierName"`
	Status             Status        `json:"status"`
	TotalSales         pricing.Money `json:"totalSales"`
	TotalTransactions  int64         `json:"totalTransactions"`
	AverageTransaction pricing.Money `json:"averageTransaction"`
	CashSales          pricing.Money `json:"cashSales"`
	NonCashSales       pricing.Money `json:"nonCashSales"`
	CashCount          int64         `json:"cashCount"`
	NonCashCount       int64         `json:"nonCashCount"`
	StartingCash       pricing.Money `json:"startingCash"`
	ExpectedCash       pricing.Money `json:"expectedCash"`
	ActualCash         pricing.Money `json:"actualCash"`
	Variance           pricing.Money `json:"variance"`
}

// Summarize produces the shift report. The average is zero when no
// transactions were recorded.
func (s *Shift) Summarize() Summary {
	sum := Summary{
		ShiftID:           s.ID,
		CashierID:         s.CashierID,
		CashierName:       s.CashierName,
		Status:            s.Status,
		TotalSales:        s.TotalSales,
		TotalTransactions: s.TotalTransactions,
		CashSales:         s.CashSales,
		NonCashSales:      s.NonCashSales,
		CashCount:         s.CashCount,
		NonCashCount:      s.NonCashCount,
		StartingCash:      s.StartingCash,
		ExpectedCash:      s.ExpectedCash,
		ActualCash:        s.ActualCash,
		Variance:          s.Variance,
	}
	if s.TotalTransactions > 0 {
		sum.AverageTransaction = s.TotalSales / pricing.Money(s.TotalTransactions)
	}
	return sum
}
