// Package pubsub connects the order event relay and the notification worker
// to the orders topic.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/homedoc-backend/pkg/config"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
)

// Role selects which orders resources a process depends on.
type Role int

const (
	// RoleRelay publishes order events and needs the topic.
	RoleRelay Role = iota
	// RoleConsumer reads order events and also needs the subscription.
	RoleConsumer
)

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errTopicRequired        = errors.New("pubsub orders topic is required")
	errSubscriptionRequired = errors.New("pubsub orders subscription is required for consumers")
	errNotInitialized       = errors.New("pubsub client not initialized")
)

// resources holds fully qualified names resolved at construction.
type resources struct {
	project      string
	topic        string
	subscription string
}

func resolve(gcp config.GCPConfig, cfg config.PubSubConfig, role Role) (resources, error) {
	r := resources{project: strings.TrimSpace(gcp.ProjectID)}
	if r.project == "" {
		return r, errProjectIDRequired
	}
	if r.topic = r.qualify("topics", cfg.OrdersTopic); r.topic == "" {
		return r, errTopicRequired
	}
	r.subscription = r.qualify("subscriptions", cfg.OrdersSubscription)
	if role == RoleConsumer && r.subscription == "" {
		return r, errSubscriptionRequired
	}
	return r, nil
}

// qualify prefixes a short id with the project; full names pass through.
func (r resources) qualify(kind, name string) string {
	n := strings.TrimSpace(name)
	switch {
	case n == "":
		return ""
	case strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/"):
		return n
	default:
		return "projects/" + r.project + "/" + kind + "/" + n
	}
}

type Client struct {
	client *gcppubsub.Client
	res    resources
	role   Role
}

// NewClient dials Pub/Sub and fails fast when a resource the role depends on
// is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, role Role, logg *logger.Logger) (*Client, error) {
	res, err := resolve(gcp, cfg, role)
	if err != nil {
		return nil, err
	}

	conn, err := gcppubsub.NewClient(ctx, res.project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: conn, res: res, role: role}
	if err := c.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"topic": res.topic, "subscription": res.subscription})
		logg.Info(ctx, "pubsub client initialized")
	}
	return c, nil
}

// Ping confirms the orders topic exists, plus the subscription for consumers.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.res.topic})
	if err := missing("topic", c.res.topic, err); err != nil {
		return err
	}
	if c.role != RoleConsumer {
		return nil
	}
	_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.res.subscription})
	return missing("subscription", c.res.subscription, err)
}

func missing(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

// OrdersSubscription returns the subscriber for order events, or nil when no
// subscription is configured.
func (c *Client) OrdersSubscription() *gcppubsub.Subscriber {
	if c == nil || c.client == nil || c.res.subscription == "" {
		return nil
	}
	return c.client.Subscriber(c.res.subscription)
}

// Publisher returns a handle for topic, accepting a short id or full name.
func (c *Client) Publisher(topic string) *gcppubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	name := c.res.qualify("topics", topic)
	if name == "" {
		return nil
	}
	return c.client.Publisher(name)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
