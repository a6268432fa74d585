package notification

import (
	"context"
	"fmt"

	commonaws "complaint-desk/internal/common/aws"
	"complaint-desk/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Alerter is told about events that were dead-lettered.
type Alerter interface {
	Alert(ctx context.Context, ev models.NotificationEvent) error
}

// AlertMailer emails the supervisor through SES.
type AlertMailer struct {
	ses  commonaws.SESAPI
	from string
	to   string
}

func NewAlertMailer(client commonaws.SESAPI, from, to string) *AlertMailer {
	return &AlertMailer{ses: client, from: from, to: to}
}

func (m *AlertMailer) Alert(ctx context.Context, ev models.NotificationEvent) error {
	subject := fmt.Sprintf("Notification for complaint #%d was not delivered", ev.ComplaintID)
	body := fmt.Sprintf(
		"Complaint #%d (%s) changed to %s but the complainant at %s could not be notified after %d attempts.\n\nLast error: %s\nEvent: %s",
		ev.ComplaintID, ev.Category, ev.Status, models.StripChannelSuffix(ev.PhoneNumber), ev.Attempts, ev.LastError, ev.ID,
	)

	_, err := m.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{m.to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(m.from),
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
