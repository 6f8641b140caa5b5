package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/resqlink/resqlink-backend/pkg/config"
	"github.com/resqlink/resqlink-backend/pkg/logger"
)

// Client wraps the Pub/Sub v2 client for the dispatch pipeline: the outbox
// publisher fans panic lifecycle events out to the dispatch and notification
// topics, and the analytics worker drains the dispatch subscription into
// BigQuery.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

var (
	errProjectIDRequired   = errors.New("gcp project id is required")
	errSubscriptionMissing = errors.New("pubsub subscription name is required")
)

// NewClient connects and fails fast when the dispatch subscription is absent.
// Topics and subscriptions are provisioned by terraform, never created here.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	raw, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	client := &Client{client: raw, projectID: projectID, cfg: cfg}
	if err := client.verifySubscriptions(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(ctx, "pubsub client initialized")
	}
	return client, nil
}

// verifySubscriptions confirms every configured subscription exists. Only the
// dispatch subscription is mandatory today; the notification side publishes
// but is consumed elsewhere.
func (c *Client) verifySubscriptions(ctx context.Context) error {
	checked := 0
	for _, name := range []string{c.cfg.DispatchSubscription} {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := c.checkSubscription(ctx, name); err != nil {
			return err
		}
		checked++
	}
	if checked == 0 {
		return errSubscriptionMissing
	}
	return nil
}

func (c *Client) checkSubscription(ctx context.Context, name string) error {
	fullName := c.qualify("subscriptions", name)
	if fullName == "" {
		return fmt.Errorf("subscription %q not configured", name)
	}

	_, err := c.client.SubscriptionAdminClient.GetSubscription(
		ctx,
		&pubsubpb.GetSubscriptionRequest{Subscription: fullName},
	)
	switch {
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("subscription %q does not exist", name)
	case err != nil:
		return fmt.Errorf("checking subscription %q: %w", name, err)
	}
	return nil
}

// Subscription returns a subscriber handle for the given subscription ID or
// full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := c.qualify("subscriptions", name)
	if fullName == "" {
		return nil
	}
	return c.client.Subscriber(fullName)
}

// DispatchSubscription is the feed of assignment and panic status events the
// analytics worker consumes.
func (c *Client) DispatchSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.DispatchSubscription)
}

// Publisher returns a publisher handle for the given topic ID or full
// resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := c.qualify("topics", name)
	if fullName == "" {
		return nil
	}
	return c.client.Publisher(fullName)
}

// DispatchPublisher publishes panic lifecycle and assignment events.
func (c *Client) DispatchPublisher() *pubsub.Publisher {
	return c.Publisher(c.cfg.DispatchTopic)
}

// NotificationPublisher publishes events destined for member and provider
// notification fan-out.
func (c *Client) NotificationPublisher() *pubsub.Publisher {
	return c.Publisher(c.cfg.NotificationTopic)
}

// Ping re-checks the configured subscriptions for the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.verifySubscriptions(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// qualify expands a bare ID into projects/<id>/<kind>/<name>. Names that are
// already fully qualified pass through unchanged.
func (c *Client) qualify(kind, name string) string {
	if c == nil {
		return ""
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	projectID := strings.TrimSpace(c.projectID)
	if projectID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", projectID, kind, name)
}
