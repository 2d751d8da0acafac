package usecases

import (
	"fmt"
	"strings"
	"time"

	"github.com/orris-inc/subflow/internal/shared/biztime"
)

// Template context keys shared by the producers of notifications and the
// email templates.
const (
	CtxPlanName       = "plan_name"
	CtxStatus         = "status"
	CtxTrialEnd       = "trial_end"
	CtxPeriodEnd      = "period_end"
	CtxAmount         = "amount"
	CtxFailureMessage = "failure_message"
	CtxNextAttempt    = "next_attempt"
	CtxInvoiceURL     = "invoice_url"
	CtxToken          = "token"
)

const dateLayout = "January 2, 2006"

// DateValue renders t for an email in the business timezone.
func DateValue(t time.Time) string {
	return biztime.FormatInBizTimezone(t, dateLayout)
}

// AmountValue renders an amount in minor units, e.g. 1999 "usd" as "19.99 USD".
func AmountValue(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, strings.ToUpper(currency))
}
