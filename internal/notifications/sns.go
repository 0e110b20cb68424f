// Package notifications publishes upstream availability alerts.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type NotificationType string

const (
	NotificationUpstreamDown NotificationType = "upstream_down"
	NotificationUpstreamUp   NotificationType = "upstream_up"
)

type Notification struct {
	Type     NotificationType `json:"type"`
	Upstream string           `json:"upstream"`
	Message  string           `json:"message"`
	Region   string           `json:"region,omitempty"`
	Commit   string           `json:"commit,omitempty"`
	Time     time.Time        `json:"time"`
}

type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSNotifier struct {
	client   SNSPublisher
	topicArn string
}

func NewSNSNotifier(ctx context.Context, region, topicArn string) (*SNSNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSNSNotifierWithClient(sns.NewFromConfig(cfg), topicArn), nil
}

func NewSNSNotifierWithClient(client SNSPublisher, topicArn string) *SNSNotifier {
	return &SNSNotifier{client: client, topicArn: topicArn}
}

func (n *SNSNotifier) Send(ctx context.Context, notification Notification) error {
	message, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicArn),
		Subject:  aws.String(fmt.Sprintf("solmate: %s %s", notification.Upstream, notification.Type)),
		Message:  aws.String(string(message)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"Type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(notification.Type)),
			},
			"Upstream": {
				DataType:    aws.String("String"),
				StringValue: aws.String(notification.Upstream),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	slog.Info("notification sent", "type", notification.Type, "upstream", notification.Upstream)
	return nil
}

// logHistory bounds what a LogNotifier remembers.
const logHistory = 100

// LogNotifier is used when no topic is configured. It keeps the most recent
// notifications it sent.
type LogNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, notification Notification) error {
	n.mu.Lock()
	n.sent = append(n.sent, notification)
	if len(n.sent) > logHistory {
		n.sent = append(n.sent[:0], n.sent[len(n.sent)-logHistory:]...)
	}
	n.mu.Unlock()

	slog.WarnContext(ctx, "upstream availability changed",
		"type", notification.Type,
		"upstream", notification.Upstream,
		"message", notification.Message,
	)
	return nil
}

func (n *LogNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.sent))
	copy(out, n.sent)
	return out
}

// Alerter turns breaker transitions into notifications. Sending is
// asynchronous so a slow topic never delays a request.
type Alerter struct {
	notifier Notifier
	region   string
	commit   string
	dedup    Deduplicator
	timeout  time.Duration
	wg       sync.WaitGroup
}

type AlerterOption func(*Alerter)

// WithDeduplicator suppresses repeats of an alert until the opposite
// transition is reported.
func WithDeduplicator(d Deduplicator) AlerterOption {
	return func(a *Alerter) {
		a.dedup = d
	}
}

func NewAlerter(notifier Notifier, region, commit string, opts ...AlerterOption) *Alerter {
	a := &Alerter{
		notifier: notifier,
		region:   region,
		commit:   commit,
		timeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// UpstreamDown and UpstreamUp report an upstream leaving or rejoining service.
func (a *Alerter) UpstreamDown(upstream string) {
	a.send(Notification{
		Type:     NotificationUpstreamDown,
		Upstream: upstream,
		Message:  fmt.Sprintf("%s circuit opened after repeated failures", upstream),
	})
}

func (a *Alerter) UpstreamUp(upstream string) {
	a.send(Notification{
		Type:     NotificationUpstreamUp,
		Upstream: upstream,
		Message:  fmt.Sprintf("%s circuit closed, upstream recovered", upstream),
	})
}

func (a *Alerter) send(n Notification) {
	n.Region = a.region
	n.Commit = a.commit
	n.Time = time.Now().UTC()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if a.dedup != nil {
			if !a.dedup.ShouldSend(ctx, n.Upstream, n.Type) {
				slog.Debug("duplicate notification suppressed", "type", n.Type, "upstream", n.Upstream)
				return
			}
			a.dedup.Clear(ctx, n.Upstream, opposite(n.Type))
		}

		if err := a.notifier.Send(ctx, n); err != nil {
			slog.Error("failed to send notification", "type", n.Type, "upstream", n.Upstream, "error", err)
		}
	}()
}

func opposite(t NotificationType) NotificationType {
	if t == NotificationUpstreamDown {
		return NotificationUpstreamUp
	}
	return NotificationUpstreamDown
}

// Wait blocks until in-flight notifications finish.
func (a *Alerter) Wait() {
	a.wg.Wait()
}
