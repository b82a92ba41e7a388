package contribution

import (
	"time"

	"github.com/trezcool/ptahub/core"
)

const recordType = "contribution"

// Verify marks a PENDING contribution VERIFIED, stamping the verification time
// and a receipt number. Terminal contributions cannot be re-verified.
func Verify(c Contribution, receiptNumber string, now time.Time) (Contribution, error) {
	if c.Status.IsTerminal() {
		return Contribution{}, &core.AlreadyTerminalError{
			RecordType: recordType,
			Status:     string(c.Status),
		}
	}
	c.Status = StatusVerified
	c.VerifiedAt.SetValid(now.UTC())
	c.ReceiptNumber.SetValid(receiptNumber)
	return c, nil
}

// Reject marks a PENDING contribution REJECTED with the given reason.
func Reject(c Contribution, reason string, now time.Time) (Contribution, error) {
	if c.Status.IsTerminal() {
		return Contribution{}, &core.AlreadyTerminalError{
			RecordType: recordType,
			Status:     string(c.Status),
		}
	}
	if reason == "" {
		return Contribution{}, &core.MissingRequiredFieldError{Field: "rejection_reason"}
	}
	c.Status = StatusRejected
	c.RejectionReason.SetValid(reason)
	return c, nil
}

// StatusCounts tallies contributions per status.
func StatusCounts(contribs []Contribution) map[Status]int {
	counts := make(map[Status]int, 3)
	for _, c := range contribs {
		counts[c.Status]++
	}
	return counts
}

// BalanceOf computes a parent's balance over their own contributions.
func BalanceOf(parentID string, contribs []Contribution) Balance {
	bal := Balance{ParentID: parentID}
	for _, c := range contribs {
		switch c.Status {
		case StatusVerified:
			bal.VerifiedTotal += c.Amount
		case StatusPending:
			bal.PendingCount++
			bal.PendingTotal += c.Amount
		}
	}
	bal.VerifiedTotal = core.Round2(bal.VerifiedTotal)
	bal.PendingTotal = core.Round2(bal.PendingTotal)
	return bal
}

// ComputeSummary aggregates contributions for reporting.
func ComputeSummary(contribs []Contribution) Summary {
	summary := Summary{StatusCounts: StatusCounts(contribs), Total: len(contribs)}
	for _, c := range contribs {
		switch c.Status {
		case StatusVerified:
			summary.VerifiedTotal += c.Amount
		case StatusPending:
			summary.PendingTotal += c.Amount
		}
	}
	summary.VerifiedTotal = core.Round2(summary.VerifiedTotal)
	summary.PendingTotal = core.Round2(summary.PendingTotal)
	return summary
}
