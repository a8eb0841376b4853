package settlement

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAllocateDeduction(t *testing.T) {
	d := func(i int64) decimal.Decimal { return decimal.NewFromInt(i) }

	tests := []struct {
		name    string
		amounts []decimal.Decimal
		pool    decimal.Decimal
		want    []int64 // deductions
	}{
		{name: "pool covers all", amounts: []decimal.Decimal{d(100), d(200)}, pool: d(300), want: []int64{100, 200}},
		{name: "first in order first", amounts: []decimal.Decimal{d(100), d(200)}, pool: d(150), want: []int64{100, 50}},
		{name: "caller order kept", amounts: []decimal.Decimal{d(200), d(100)}, pool: d(150), want: []int64{150, 0}},
		{name: "empty pool", amounts: []decimal.Decimal{d(100)}, pool: decimal.Zero, want: []int64{0}},
		{name: "no requests", pool: d(100), want: []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AllocateDeduction(tt.amounts, tt.pool)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d allocations, want %d", len(got), len(tt.want))
			}
			for i, alloc := range got {
				if !alloc.Deduction.Equal(d(tt.want[i])) {
					t.Errorf("allocation[%d].Deduction = %s, want %d", i, alloc.Deduction, tt.want[i])
				}
				if !alloc.Net.Equal(tt.amounts[i].Sub(alloc.Deduction)) {
					t.Errorf("allocation[%d].Net = %s, want amount - deduction", i, alloc.Net)
				}
			}
		})
	}
}

func TestPayment_Validate(t *testing.T) {
	p := Payment{
		ID:               "p1",
		TeacherID:        "t1",
		ClassID:          "c1",
		GrossAmount:      decimal.NewFromInt(5000),
		AdvanceDeduction: decimal.NewFromInt(2000),
		NetDisbursement:  decimal.NewFromInt(3000),
		LectureCount:     5,
	}
	p.DatePaid = p.DatePaid.AddDate(2024, 0, 0)
	p.StartDateCovered = p.DatePaid
	p.EndDateCovered = p.DatePaid.AddDate(0, 0, 4)
	p.PaidBy = "admin"

	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	bad := p
	bad.NetDisbursement = decimal.NewFromInt(3001)
	if err := bad.Validate(); err == nil {
		t.Error("Validate() net != gross - deduction should fail")
	}

	bad = p
	bad.EndDateCovered = p.StartDateCovered.AddDate(0, 0, -1)
	if err := bad.Validate(); err == nil {
		t.Error("Validate() end before start should fail")
	}
}
