package ports

import "time"

const (
	DefaultSweepInterval = time.Minute // period of the automatic status sweep

	// Status-advancement thresholds. Card orders not confirmed in time are
	// cancelled; cash orders are treated as paid on handover.
	CardPaymentTimeout = 10 * time.Minute // PAYMENT_PENDING card order -> CANCELLED
	CashConfirmDelay   = 2 * time.Minute  // PAYMENT_PENDING cash order -> PAID
	AcceptDelay        = 2 * time.Minute  // PAID -> ACCEPTED
	CompleteDelay      = 5 * time.Minute  // ACCEPTED -> COMPLETED
)
