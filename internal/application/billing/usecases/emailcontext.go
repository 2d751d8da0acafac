package usecases

import (
	"github.com/orris-inc/subflow/internal/application/billing/provider"
	notificationusecases "github.com/orris-inc/subflow/internal/application/notification/usecases"
	"github.com/orris-inc/subflow/internal/domain/plan"
	"github.com/orris-inc/subflow/internal/domain/subscription"
)

func confirmationContext(sub *subscription.Subscription, pl *plan.Plan) map[string]any {
	ctx := map[string]any{
		notificationusecases.CtxPlanName:  pl.Name(),
		notificationusecases.CtxStatus:    sub.Status().String(),
		notificationusecases.CtxPeriodEnd: notificationusecases.DateValue(sub.CurrentPeriodEnd()),
	}
	if sub.TrialEnd() != nil {
		ctx[notificationusecases.CtxTrialEnd] = notificationusecases.DateValue(*sub.TrialEnd())
	}
	return ctx
}

func paymentFailedContext(p provider.InvoiceFailed) map[string]any {
	ctx := map[string]any{
		notificationusecases.CtxAmount: notificationusecases.AmountValue(p.AmountDue, p.Currency),
	}
	if p.FailureMessage != "" {
		ctx[notificationusecases.CtxFailureMessage] = p.FailureMessage
	}
	if p.NextPaymentAttempt != nil {
		ctx[notificationusecases.CtxNextAttempt] = notificationusecases.DateValue(*p.NextPaymentAttempt)
	}
	if p.InvoiceURL != "" {
		ctx[notificationusecases.CtxInvoiceURL] = p.InvoiceURL
	}
	return ctx
}
