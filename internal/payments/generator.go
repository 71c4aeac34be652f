package payments

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/teambition/rrule-go"

	"enrollment-app/internal/domain/plans"
	"enrollment-app/internal/domain/schedule"
)

// SubscriptionWindow is the number of periods materialized up front for a
// subscription plan. Further periods are appended on demand via
// AppendNextPeriod by the recurring job.
const SubscriptionWindow = 12

var hundred = decimal.NewFromInt(100)

// Generate expands a plan template, a total price and an anchor date into
// the ordered, unpersisted obligation set. Pure: no I/O, no clock reads.
//
// Monetary invariant: the amounts of a one_time or deposit_installments
// schedule sum to exactly total; installments split the post-deposit
// remainder evenly with any leftover cents folded into the last one.
func Generate(tpl plans.PlanTemplate, total decimal.Decimal, anchor time.Time) ([]schedule.PaymentObligation, error) {
	if total.LessThanOrEqual(decimal.Zero) {
		return nil, configErrorf("total amount must be positive, got %s", total)
	}

	switch tpl.Type {
	case plans.PlanOneTime:
		return []schedule.PaymentObligation{newObligation(tpl, 1, schedule.PaymentFull, total, anchor)}, nil

	case plans.PlanDepositInstallments:
		return generateDepositInstallments(tpl, total, anchor)

	case plans.PlanSubscription:
		return generateSubscriptionWindow(tpl, total, anchor)

	default:
		return nil, configErrorf("unknown plan type %q", tpl.Type)
	}
}

func generateDepositInstallments(tpl plans.PlanTemplate, total decimal.Decimal, anchor time.Time) ([]schedule.PaymentObligation, error) {
	if tpl.DepositAmount == nil || tpl.DepositAmount.LessThanOrEqual(decimal.Zero) {
		return nil, configErrorf("deposit_installments template %d has no deposit amount", tpl.ID)
	}
	if tpl.InstallmentCount < 1 {
		return nil, configErrorf("deposit_installments template %d has installment count %d", tpl.ID, tpl.InstallmentCount)
	}
	if tpl.DepositAmount.GreaterThanOrEqual(total) {
		return nil, configErrorf("deposit %s is not below total %s", tpl.DepositAmount, total)
	}

	n := tpl.InstallmentCount
	dates, err := occurrences(tpl, anchor, n+1)
	if err != nil {
		return nil, err
	}

	obs := make([]schedule.PaymentObligation, 0, n+1)
	obs = append(obs, newObligation(tpl, 1, schedule.PaymentDeposit, *tpl.DepositAmount, anchor))

	remaining := total.Sub(*tpl.DepositAmount)
	per := remaining.DivRound(decimal.NewFromInt(int64(n)), 2)
	for i := 1; i <= n; i++ {
		amount := per
		if i == n {
			// Last installment absorbs the rounding remainder so the
			// schedule sums to total exactly.
			amount = remaining.Sub(per.Mul(decimal.NewFromInt(int64(n - 1))))
		}
		obs = append(obs, newObligation(tpl, i+1, schedule.PaymentInstallment, amount, dates[i]))
	}
	return obs, nil
}

func generateSubscriptionWindow(tpl plans.PlanTemplate, perPeriod decimal.Decimal, anchor time.Time) ([]schedule.PaymentObligation, error) {
	dates, err := occurrences(tpl, anchor, SubscriptionWindow)
	if err != nil {
		return nil, err
	}

	obs := make([]schedule.PaymentObligation, 0, SubscriptionWindow)
	for i, d := range dates {
		obs = append(obs, newObligation(tpl, i+1, schedule.PaymentSubscription, perPeriod, d))
	}
	return obs, nil
}

// AppendNextPeriod materializes the period following last, using the same
// per-obligation construction rule as the initial window. Subscription
// templates only.
func AppendNextPeriod(tpl plans.PlanTemplate, last schedule.PaymentObligation) (schedule.PaymentObligation, error) {
	if tpl.Type != plans.PlanSubscription {
		return schedule.PaymentObligation{}, configErrorf("template %d is not a subscription plan", tpl.ID)
	}
	dates, err := occurrences(tpl, last.ScheduledDate, 2)
	if err != nil {
		return schedule.PaymentObligation{}, err
	}
	next := newObligation(tpl, last.PaymentNumber+1, schedule.PaymentSubscription, last.Amount, dates[1])
	next.EnrollmentID = last.EnrollmentID
	return next, nil
}

func newObligation(tpl plans.PlanTemplate, number int, pt schedule.PaymentType, amount decimal.Decimal, date time.Time) schedule.PaymentObligation {
	return schedule.PaymentObligation{
		PaymentNumber: number,
		PaymentType:   pt,
		Amount:        amount,
		Currency:      tpl.Currency,
		ScheduledDate: date,
		Status:        schedule.StatusPending,
	}
}

// occurrences returns count dates starting at anchor, stepping by the
// template's frequency (biweekly is WEEKLY with interval 2). RRULE does the
// calendar arithmetic; anchors past the 28th clamp to month end so no
// period is skipped.
func occurrences(tpl plans.PlanTemplate, anchor time.Time, count int) ([]time.Time, error) {
	if tpl.Frequency == nil {
		return nil, configErrorf("template %d of type %s requires a frequency", tpl.ID, tpl.Type)
	}

	var freq rrule.Frequency
	interval := 1
	switch *tpl.Frequency {
	case plans.FrequencyWeekly:
		freq = rrule.WEEKLY
	case plans.FrequencyBiweekly:
		freq = rrule.WEEKLY
		interval = 2
	case plans.FrequencyMonthly:
		freq = rrule.MONTHLY
	case plans.FrequencyYearly:
		freq = rrule.YEARLY
	default:
		return nil, configErrorf("unknown frequency %q", *tpl.Frequency)
	}

	opt := rrule.ROption{
		Freq:     freq,
		Interval: interval,
		Dtstart:  anchor,
		Count:    count,
	}
	// A plain monthly or yearly rule anchored past the 28th drops every
	// period lacking that day (RFC 5545 omits invalid dates), so a
	// Jan-31 schedule would have no February payment. Offer 28..day as
	// candidate monthdays and keep the latest valid one per period,
	// which clamps short months to their last day.
	if day := anchor.Day(); day > 28 {
		switch freq {
		case rrule.MONTHLY:
			opt.Bymonthday = monthEndCandidates(day)
			opt.Bysetpos = []int{-1}
		case rrule.YEARLY:
			opt.Bymonth = []int{int(anchor.Month())}
			opt.Bymonthday = monthEndCandidates(day)
			opt.Bysetpos = []int{-1}
		}
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, configErrorf("cannot build recurrence for template %d: %v", tpl.ID, err)
	}

	dates := r.All()
	if len(dates) != count {
		return nil, configErrorf("recurrence for template %d yielded %d dates, want %d", tpl.ID, len(dates), count)
	}
	return dates, nil
}

func monthEndCandidates(day int) []int {
	out := make([]int, 0, day-27)
	for d := 28; d <= day; d++ {
		out = append(out, d)
	}
	return out
}

// MinorUnits converts a decimal major-unit amount to the processor's
// integer minor units (cents).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
