package learning

import (
	"context"
	"fmt"
	"strings"

	"tourism-retrieval/internal/common/aws"
	"tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/models"
)

// Notifier is told when a knowledge gap reaches high priority.
type Notifier interface {
	GapFlagged(ctx context.Context, gap models.KnowledgeGap) error
}

// SNSNotifier publishes flagged gaps to an SNS topic so curators can pick
// them up.
type SNSNotifier struct {
	client *aws.SNSClient
}

func NewSNSNotifier(client *aws.SNSClient) *SNSNotifier {
	return &SNSNotifier{client: client}
}

func (n *SNSNotifier) GapFlagged(ctx context.Context, gap models.KnowledgeGap) error {
	_, err := n.client.PublishJSON(ctx, "Knowledge gap flagged: "+gap.Category, gap, map[string]string{
		"category": gap.Category,
		"priority": string(gap.Priority),
	})
	if err != nil {
		return errors.NewNotificationSendFailedError("sns", err)
	}
	return nil
}

// EmailDigest mails the current priority knowledge gaps.
type EmailDigest struct {
	client     *aws.SESClient
	recipients []string
}

func NewEmailDigest(client *aws.SESClient, recipients []string) *EmailDigest {
	return &EmailDigest{client: client, recipients: recipients}
}

// Send mails gaps and returns the SES message id. Nothing is sent when gaps
// is empty.
func (d *EmailDigest) Send(ctx context.Context, gaps []models.KnowledgeGap) (string, error) {
	if len(gaps) == 0 {
		return "", nil
	}
	if len(d.recipients) == 0 {
		return "", errors.NewNotificationSendFailedError("ses", fmt.Errorf("no recipients configured"))
	}

	subject := fmt.Sprintf("%d priority knowledge gap(s)", len(gaps))
	id, err := d.client.SendText(ctx, d.recipients, subject, FormatDigest(gaps))
	if err != nil {
		return "", errors.NewNotificationSendFailedError("ses", err)
	}
	return id, nil
}

// FormatDigest renders gaps as a plain-text list.
func FormatDigest(gaps []models.KnowledgeGap) string {
	var b strings.Builder
	b.WriteString("Knowledge gaps needing curation\n\n")
	for i, g := range gaps {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, g.Category, g.Question)
		fmt.Fprintf(&b, "   asked %d time(s), lowest confidence %.0f%%\n", g.Frequency, g.CurrentConfidence*100)
		if len(g.SuggestedSources) > 0 {
			fmt.Fprintf(&b, "   suggested sources: %s\n", strings.Join(g.SuggestedSources, ", "))
		}
	}
	return b.String()
}
