package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	commonaws "complaint-desk/internal/common/aws"
	commonhttp "complaint-desk/internal/common/http"
	"complaint-desk/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Sender delivers one event over a single channel.
type Sender interface {
	Channel() string
	Send(ctx context.Context, ev models.NotificationEvent) error
}

// WhatsAppSender posts to the WhatsApp bot's notification endpoint.
type WhatsAppSender struct {
	endpoint string
	client   *commonhttp.Client
}

func NewWhatsAppSender(baseURL string, timeout time.Duration) *WhatsAppSender {
	return &WhatsAppSender{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/send-notification",
		client:   commonhttp.NewClient(timeout),
	}
}

func (s *WhatsAppSender) Channel() string { return "whatsapp" }

// Send succeeds only on a 2xx reply whose body reports success.
func (s *WhatsAppSender) Send(ctx context.Context, ev models.NotificationEvent) error {
	status, body, err := s.client.PostJSON(ctx, s.endpoint, models.NotificationPayload{
		PhoneNumber: ev.PhoneNumber,
		ComplaintID: strconv.FormatInt(ev.ComplaintID, 10),
		Category:    ev.Category,
		Status:      string(ev.Status),
	})
	if err != nil {
		return fmt.Errorf("whatsapp request: %w", err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("whatsapp service returned status %d", status)
	}

	var reply struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return fmt.Errorf("decode whatsapp reply: %w", err)
	}
	if !reply.Success {
		return fmt.Errorf("whatsapp service reported failure")
	}
	return nil
}

// SMSSender publishes a text message through SNS.
type SMSSender struct {
	sns      commonaws.SNSAPI
	senderID string
}

func NewSMSSender(client commonaws.SNSAPI, senderID string) *SMSSender {
	return &SMSSender{sns: client, senderID: senderID}
}

func (s *SMSSender) Channel() string { return "sms" }

func (s *SMSSender) Send(ctx context.Context, ev models.NotificationEvent) error {
	input := &sns.PublishInput{
		PhoneNumber: aws.String("+" + models.StripChannelSuffix(ev.PhoneNumber)),
		Message:     aws.String(StatusMessage(ev)),
	}
	if s.senderID != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(s.senderID),
			},
		}
	}

	if _, err := s.sns.Publish(ctx, input); err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

// StatusMessage is the plain-text body used by non-WhatsApp channels.
func StatusMessage(ev models.NotificationEvent) string {
	switch ev.Status {
	case models.StatusInProgress:
		return fmt.Sprintf("Your %s complaint #%d has been assigned to a field worker.", ev.Category, ev.ComplaintID)
	case models.StatusCompleted:
		return fmt.Sprintf("Your %s complaint #%d has been resolved.", ev.Category, ev.ComplaintID)
	case models.StatusNotCompleted:
		return fmt.Sprintf("Your %s complaint #%d could not be completed.", ev.Category, ev.ComplaintID)
	default:
		return fmt.Sprintf("Your %s complaint #%d is now %s.", ev.Category, ev.ComplaintID, ev.Status)
	}
}
