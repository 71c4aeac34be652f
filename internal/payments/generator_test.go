package payments

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"enrollment-app/internal/domain/plans"
	"enrollment-app/internal/domain/schedule"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func freq(f plans.Frequency) *plans.Frequency { return &f }

func depositTemplate(deposit string, count int, f plans.Frequency) plans.PlanTemplate {
	d := dec(deposit)
	return plans.PlanTemplate{
		ID:               1,
		Type:             plans.PlanDepositInstallments,
		DepositAmount:    &d,
		InstallmentCount: count,
		Frequency:        freq(f),
		Currency:         "usd",
	}
}

func TestGenerateOneTime(t *testing.T) {
	anchor := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	obs, err := Generate(plans.PlanTemplate{Type: plans.PlanOneTime, Currency: "usd"}, dec("499.99"), anchor)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("got %d obligations, want 1", len(obs))
	}
	o := obs[0]
	if o.PaymentNumber != 1 || o.PaymentType != schedule.PaymentFull {
		t.Errorf("got number=%d type=%s", o.PaymentNumber, o.PaymentType)
	}
	if !o.Amount.Equal(dec("499.99")) {
		t.Errorf("amount = %s, want 499.99", o.Amount)
	}
	if !o.ScheduledDate.Equal(anchor) {
		t.Errorf("scheduled date = %s, want anchor", o.ScheduledDate)
	}
}

func TestGenerateDepositInstallmentsScenario(t *testing.T) {
	// deposit=50, 2 monthly installments, total=250, anchor=2025-01-01
	anchor := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	obs, err := Generate(depositTemplate("50", 2, plans.FrequencyMonthly), dec("250"), anchor)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	want := []struct {
		pt     schedule.PaymentType
		amount string
		date   time.Time
	}{
		{schedule.PaymentDeposit, "50", anchor},
		{schedule.PaymentInstallment, "100", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
		{schedule.PaymentInstallment, "100", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	if len(obs) != len(want) {
		t.Fatalf("got %d obligations, want %d", len(obs), len(want))
	}
	for i, w := range want {
		o := obs[i]
		if o.PaymentNumber != i+1 {
			t.Errorf("obligation %d: payment number = %d", i, o.PaymentNumber)
		}
		if o.PaymentType != w.pt {
			t.Errorf("obligation %d: type = %s, want %s", i, o.PaymentType, w.pt)
		}
		if !o.Amount.Equal(dec(w.amount)) {
			t.Errorf("obligation %d: amount = %s, want %s", i, o.Amount, w.amount)
		}
		if !o.ScheduledDate.Equal(w.date) {
			t.Errorf("obligation %d: date = %s, want %s", i, o.ScheduledDate, w.date)
		}
	}
}

func TestGenerateRoundingRemainderGoesLast(t *testing.T) {
	// total=100, deposit=20, 3 installments: 80/3 → [26.67, 26.67, 26.66]
	anchor := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	obs, err := Generate(depositTemplate("20", 3, plans.FrequencyMonthly), dec("100"), anchor)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	amounts := []string{"20", "26.67", "26.67", "26.66"}
	for i, a := range amounts {
		if !obs[i].Amount.Equal(dec(a)) {
			t.Errorf("obligation %d: amount = %s, want %s", i, obs[i].Amount, a)
		}
	}
}

func TestGenerateSumInvariant(t *testing.T) {
	anchor := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		tpl     plans.PlanTemplate
		total   string
		wantLen int
	}{
		{"one_time", plans.PlanTemplate{Type: plans.PlanOneTime}, "333.33", 1},
		{"even split", depositTemplate("100", 4, plans.FrequencyWeekly), "500", 5},
		{"awkward split", depositTemplate("19.99", 7, plans.FrequencyBiweekly), "420.69", 8},
		{"single installment", depositTemplate("1", 1, plans.FrequencyYearly), "999.99", 2},
		{"cent remainder", depositTemplate("0.01", 3, plans.FrequencyMonthly), "0.11", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := Generate(tt.tpl, dec(tt.total), anchor)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if len(obs) != tt.wantLen {
				t.Fatalf("got %d obligations, want %d", len(obs), tt.wantLen)
			}
			sum := decimal.Zero
			for _, o := range obs {
				sum = sum.Add(o.Amount)
			}
			if !sum.Equal(dec(tt.total)) {
				t.Errorf("sum = %s, want %s", sum, tt.total)
			}
		})
	}
}

func TestGenerateOrderingInvariant(t *testing.T) {
	anchor := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC) // month-end stresses the stepping
	tpl := depositTemplate("50", 6, plans.FrequencyMonthly)
	obs, err := Generate(tpl, dec("650"), anchor)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// One payment per month, short months clamped to their last day.
	wantDates := []time.Time{
		anchor,
		time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC),
	}
	if len(obs) != len(wantDates) {
		t.Fatalf("got %d obligations, want %d", len(obs), len(wantDates))
	}
	for i, o := range obs {
		if o.PaymentNumber != i+1 {
			t.Errorf("payment number at %d = %d, want %d", i, o.PaymentNumber, i+1)
		}
		if !o.ScheduledDate.Equal(wantDates[i]) {
			t.Errorf("payment %d date = %s, want %s", o.PaymentNumber, o.ScheduledDate, wantDates[i])
		}
	}
	if err := ValidateSchedule(obs); err != nil {
		t.Errorf("ValidateSchedule() = %v", err)
	}
}

func TestGenerateMonthEndAnchorSkipsNoPeriod(t *testing.T) {
	// deposit=50, 3 monthly installments, anchored on the 31st: every
	// consecutive month gets exactly one payment.
	anchor := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	obs, err := Generate(depositTemplate("50", 3, plans.FrequencyMonthly), dec("350"), anchor)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	wantDates := []time.Time{
		anchor,
		time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC),
	}
	if len(obs) != len(wantDates) {
		t.Fatalf("got %d obligations, want %d", len(obs), len(wantDates))
	}
	for i, want := range wantDates {
		if !obs[i].ScheduledDate.Equal(want) {
			t.Errorf("payment %d date = %s, want %s", i+1, obs[i].ScheduledDate, want)
		}
	}
}

func TestGenerateYearlyLeapDayClamps(t *testing.T) {
	anchor := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	obs, err := Generate(depositTemplate("100", 2, plans.FrequencyYearly), dec("300"), anchor)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	wantDates := []time.Time{
		anchor,
		time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
	}
	if len(obs) != len(wantDates) {
		t.Fatalf("got %d obligations, want %d", len(obs), len(wantDates))
	}
	for i, want := range wantDates {
		if !obs[i].ScheduledDate.Equal(want) {
			t.Errorf("payment %d date = %s, want %s", i+1, obs[i].ScheduledDate, want)
		}
	}
}

func TestGenerateSubscriptionWindow(t *testing.T) {
	anchor := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tpl := plans.PlanTemplate{Type: plans.PlanSubscription, Frequency: freq(plans.FrequencyMonthly), Currency: "usd"}
	obs, err := Generate(tpl, dec("29.99"), anchor)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(obs) != SubscriptionWindow {
		t.Fatalf("got %d obligations, want %d", len(obs), SubscriptionWindow)
	}
	sum := decimal.Zero
	for i, o := range obs {
		if o.PaymentType != schedule.PaymentSubscription {
			t.Errorf("obligation %d: type = %s", i, o.PaymentType)
		}
		if !o.Amount.Equal(dec("29.99")) {
			t.Errorf("obligation %d: amount = %s, want 29.99", i, o.Amount)
		}
		sum = sum.Add(o.Amount)
	}
	if want := dec("29.99").Mul(decimal.NewFromInt(SubscriptionWindow)); !sum.Equal(want) {
		t.Errorf("window sum = %s, want %s", sum, want)
	}
}

func TestAppendNextPeriod(t *testing.T) {
	anchor := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tpl := plans.PlanTemplate{Type: plans.PlanSubscription, Frequency: freq(plans.FrequencyMonthly), Currency: "usd"}
	obs, err := Generate(tpl, dec("29.99"), anchor)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	last := obs[len(obs)-1]
	last.EnrollmentID = 7
	next, err := AppendNextPeriod(tpl, last)
	if err != nil {
		t.Fatalf("AppendNextPeriod() error = %v", err)
	}
	if next.PaymentNumber != last.PaymentNumber+1 {
		t.Errorf("payment number = %d, want %d", next.PaymentNumber, last.PaymentNumber+1)
	}
	if next.EnrollmentID != 7 {
		t.Errorf("enrollment id = %d, want 7", next.EnrollmentID)
	}
	if want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC); !next.ScheduledDate.Equal(want) {
		t.Errorf("scheduled date = %s, want %s", next.ScheduledDate, want)
	}
	if !next.Amount.Equal(last.Amount) {
		t.Errorf("amount = %s, want %s", next.Amount, last.Amount)
	}

	if _, err := AppendNextPeriod(plans.PlanTemplate{Type: plans.PlanOneTime}, last); !errors.Is(err, ErrBadTemplate) {
		t.Errorf("AppendNextPeriod on one_time = %v, want ErrBadTemplate", err)
	}
}

func TestGenerateConfigErrors(t *testing.T) {
	anchor := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	deposit := dec("50")

	tests := []struct {
		name  string
		tpl   plans.PlanTemplate
		total string
	}{
		{"zero total", plans.PlanTemplate{Type: plans.PlanOneTime}, "0"},
		{"negative total", plans.PlanTemplate{Type: plans.PlanOneTime}, "-10"},
		{"missing deposit", plans.PlanTemplate{Type: plans.PlanDepositInstallments, InstallmentCount: 3, Frequency: freq(plans.FrequencyMonthly)}, "100"},
		{"zero installments", depositTemplate("50", 0, plans.FrequencyMonthly), "100"},
		{"deposit >= total", depositTemplate("100", 2, plans.FrequencyMonthly), "100"},
		{"missing frequency", plans.PlanTemplate{Type: plans.PlanDepositInstallments, DepositAmount: &deposit, InstallmentCount: 2}, "200"},
		{"subscription without frequency", plans.PlanTemplate{Type: plans.PlanSubscription}, "29.99"},
		{"unknown type", plans.PlanTemplate{Type: "lifetime"}, "100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Generate(tt.tpl, dec(tt.total), anchor); !errors.Is(err, ErrBadTemplate) {
				t.Errorf("Generate() error = %v, want ErrBadTemplate", err)
			}
		})
	}
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"29.99", 2999},
		{"100", 10000},
		{"0.01", 1},
		{"26.66", 2666},
	}
	for _, tt := range tests {
		if got := MinorUnits(dec(tt.amount)); got != tt.want {
			t.Errorf("MinorUnits(%s) = %d, want %d", tt.amount, got, tt.want)
		}
	}
}
