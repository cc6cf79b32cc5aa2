// Package csvio converts subscriber imports and period exports to and from CSV.
package csvio

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	bpdomain "github.com/smallbiznis/bukukas/internal/billingperiod/domain"
	"github.com/smallbiznis/bukukas/internal/calendar"
	subscriberdomain "github.com/smallbiznis/bukukas/internal/subscriber/domain"
)

var ErrEmptyFile = errors.New("empty_csv")

// SubscriberRow is one line of a subscriber import file.
type SubscriberRow struct {
	Name              string `csv:"name"`
	Program           string `csv:"program"`
	MonthlyPrice      string `csv:"monthly_price"`
	StartDate         string `csv:"start_date"`
	InitialTermMonths string `csv:"initial_term_months"`
	FirstDiscount     string `csv:"first_discount"`
}

// EntryRow is one line of a period export.
type EntryRow struct {
	Period          string `csv:"period"`
	EntryID         string `csv:"entry_id"`
	ChainID         string `csv:"chain_id"`
	RefID           string `csv:"ref_id"`
	SubscriberName  string `csv:"subscriber_name"`
	ProgramName     string `csv:"program_name"`
	PeriodStart     string `csv:"period_start"`
	TermMonths      int    `csv:"term_months"`
	DueDate         string `csv:"due_date"`
	MonthlyPrice    string `csv:"monthly_price"`
	GrossAmount     string `csv:"gross_amount"`
	DiscountAmount  string `csv:"discount_amount"`
	DiscountPercent int    `csv:"discount_percent"`
	NetAmount       string `csv:"net_amount"`
	Status          string `csv:"status"`
	PaidDate        string `csv:"paid_date"`
}

// ReadSubscribers parses an import file. Blank amounts read as zero and a blank
// term as one month; dates are checked later by the subscriber service.
func ReadSubscribers(r io.Reader) ([]subscriberdomain.CreateSubscriberRequest, error) {
	var rows []*SubscriberRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("csvio: read subscribers: %w", err)
	}

	reqs := make([]subscriberdomain.CreateSubscriberRequest, 0, len(rows))
	for i, row := range rows {
		req, err := row.toRequest()
		if err != nil {
			return nil, fmt.Errorf("csvio: row %d: %w", i+1, err)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func (row SubscriberRow) toRequest() (subscriberdomain.CreateSubscriberRequest, error) {
	price, err := parseAmount(row.MonthlyPrice)
	if err != nil {
		return subscriberdomain.CreateSubscriberRequest{}, subscriberdomain.ErrInvalidPrice
	}
	discount, err := parseAmount(row.FirstDiscount)
	if err != nil {
		return subscriberdomain.CreateSubscriberRequest{}, subscriberdomain.ErrInvalidDiscount
	}

	term := 1
	if raw := strings.TrimSpace(row.InitialTermMonths); raw != "" {
		term, err = strconv.Atoi(raw)
		if err != nil {
			return subscriberdomain.CreateSubscriberRequest{}, subscriberdomain.ErrInvalidTermMonths
		}
	}

	return subscriberdomain.CreateSubscriberRequest{
		Name:              strings.TrimSpace(row.Name),
		Program:           strings.TrimSpace(row.Program),
		MonthlyPrice:      price,
		StartDate:         strings.TrimSpace(row.StartDate),
		InitialTermMonths: term,
		FirstDiscount:     discount,
		Metadata:          map[string]any{"source": "csv_import"},
	}, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

// WriteEntries writes a header row followed by one row per entry. The header
// comes from the row type, so an empty period still yields it.
func WriteEntries(w io.Writer, entries []bpdomain.BillingEntry) error {
	rows := make([]*EntryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, toEntryRow(e))
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("csvio: write entries: %w", err)
	}
	return nil
}

func toEntryRow(e bpdomain.BillingEntry) *EntryRow {
	row := &EntryRow{
		Period:          e.Period,
		EntryID:         e.ID.String(),
		ChainID:         e.ChainID.String(),
		RefID:           e.RefID,
		SubscriberName:  e.SubscriberName,
		ProgramName:     e.ProgramName,
		PeriodStart:     calendar.FormatDate(e.PeriodStart),
		TermMonths:      e.TermMonths,
		DueDate:         calendar.FormatDate(e.DueDate),
		MonthlyPrice:    e.MonthlyPrice.StringFixed(2),
		GrossAmount:     e.GrossAmount.StringFixed(2),
		DiscountAmount:  e.DiscountAmount.StringFixed(2),
		DiscountPercent: e.DiscountPercent,
		NetAmount:       e.NetAmount.StringFixed(2),
		Status:          string(e.Status),
	}
	if e.PaidDate != nil {
		row.PaidDate = calendar.FormatDate(*e.PaidDate)
	}
	return row
}
