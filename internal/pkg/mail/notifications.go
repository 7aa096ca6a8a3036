package mail

import (
	"fmt"
	"html"
	"strings"

	"github.com/yicheng0/tryveo4/internal/pkg/env"
)

// Notifier sends transactional billing emails. It satisfies the billing
// package's Mailer interface.
type Notifier struct{}

// NewNotifier returns the SMTP-backed notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// SendPaymentFailed tells the user a subscription charge was declined and
// where to update the payment method.
func (n *Notifier) SendPaymentFailed(email, name string, amountCents int64, currency string) error {
	appName := env.GetEnv("APP_NAME", "Tryveo")
	billingURL := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", "http://localhost:3000"), "/") + "/account/billing"

	subject := fmt.Sprintf("%s: payment failed", appName)
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>We could not charge %s for your subscription. Your plan stays active for now,
but the provider will retry and may suspend the subscription if the retries fail.</p>
<p>Please update your payment method here: <a href="%s">%s</a></p>
<p>The %s Team</p>`,
		html.EscapeString(name), formatAmount(amountCents, currency), billingURL, billingURL, appName)

	return SendMail(email, subject, body)
}

func formatAmount(cents int64, currency string) string {
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if cur == "" {
		cur = "USD"
	}
	return fmt.Sprintf("%.2f %s", float64(cents)/100, cur)
}
