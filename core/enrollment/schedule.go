package enrollment

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlanMonths returns the number of monthly installments of an installment plan.
func PlanMonths(plan string) (int, bool) {
	n, ok := planMonths[plan]
	return n, ok
}

// BuildSchedule splits total into the monthly installments of plan, the first one due a month after `from`.
// Amounts are rounded to cents; the last installment absorbs the rounding remainder.
func BuildSchedule(total float64, plan string, from time.Time) []ScheduledPayment {
	n, _ := PlanMonths(plan)
	if n <= 0 {
		return []ScheduledPayment{}
	}

	totalDec := decimal.NewFromFloat(total)
	share := totalDec.Div(decimal.NewFromInt(int64(n))).Round(2)
	schedule := make([]ScheduledPayment, 0, n)
	allocated := decimal.Zero
	for i := 1; i <= n; i++ {
		amount := share
		if i == n {
			amount = totalDec.Sub(allocated)
		}
		allocated = allocated.Add(amount)
		schedule = append(schedule, ScheduledPayment{
			DueDate: from.AddDate(0, i, 0),
			Amount:  amount.InexactFloat64(),
			Status:  PaymentPending,
		})
	}
	return schedule
}

// applyPayment credits amount on p: the amount paid & payment status are updated and the first pending
// installment whose amount is covered by `amount` is marked as paid. Remainders are not rolled over.
func applyPayment(p *Payment, amount float64, transactionID string, at time.Time) {
	amountDec := decimal.NewFromFloat(amount)
	paid := decimal.NewFromFloat(p.AmountPaid).Add(amountDec)
	p.AmountPaid = paid.InexactFloat64()

	if paid.GreaterThanOrEqual(decimal.NewFromFloat(p.TotalAmount)) {
		p.PaymentStatus = PaymentPaid
	} else if paid.IsPositive() {
		p.PaymentStatus = PaymentPartial
	}

	for i := range p.Schedule {
		entry := &p.Schedule[i]
		if entry.Status == PaymentPending && decimal.NewFromFloat(entry.Amount).LessThanOrEqual(amountDec) {
			paidAt := at
			entry.Status = PaymentPaid
			entry.PaidDate = &paidAt
			entry.TransactionID = transactionID
			break
		}
	}
}
