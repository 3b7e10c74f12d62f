package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ivankudzin/brokerreviews/internal/infra/httpclient"
)

type MessageID int

type Config struct {
	Token       string
	ChannelID   string
	APIEndpoint string
	Timeout     time.Duration
}

type WebhookInfo struct {
	URL                  string
	HasCustomCertificate bool
	PendingUpdateCount   int
	LastErrorDate        time.Time
	LastErrorMessage     string
	MaxConnections       int
}

// Client posts to a single moderation channel and manages the bot's webhook.
// It is safe for concurrent use; sends are delivered in the order Send is called.
type Client struct {
	api             *tgbotapi.BotAPI
	chatID          int64
	channelUsername string
	disabled        *ConfigurationError

	sendMu sync.Mutex

	selfMu   sync.Mutex
	username string
}

func New(cfg Config) (*Client, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	endpoint := strings.TrimSpace(cfg.APIEndpoint)
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	// getMe is deferred to BotUsername; construction never touches the network.
	api := &tgbotapi.BotAPI{
		Token:  strings.TrimSpace(cfg.Token),
		Client: httpclient.New(cfg.Timeout),
		Buffer: 100,
	}
	api.SetAPIEndpoint(endpoint)

	client := &Client{api: api}
	channel := strings.TrimSpace(cfg.ChannelID)
	if id, parseErr := strconv.ParseInt(channel, 10, 64); parseErr == nil {
		client.chatID = id
	} else {
		client.channelUsername = "@" + strings.TrimPrefix(channel, "@")
	}

	return client, nil
}

// Disabled returns a client whose every call fails with the configuration error that kept it
// from being built, so callers see why the channel is unavailable.
func Disabled(cause *ConfigurationError) *Client {
	if cause == nil {
		cause = &ConfigurationError{Missing: []string{"token", "channel_id"}}
	}
	return &Client{disabled: cause}
}

func validateConfig(cfg Config) error {
	var missing []string
	if strings.TrimSpace(cfg.Token) == "" {
		missing = append(missing, "token")
	}
	if strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(cfg.ChannelID), "@")) == "" {
		missing = append(missing, "channel_id")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

func (c *Client) ready() error {
	if c == nil {
		return ErrNotInitialized
	}
	if c.disabled != nil {
		return c.disabled
	}
	if c.api == nil {
		return ErrNotInitialized
	}
	return nil
}

func (c *Client) Enabled() bool {
	return c.ready() == nil
}

// BotUsername returns the bot's username, asking the provider once. It returns "" while the
// provider cannot be reached; the next call tries again.
func (c *Client) BotUsername() string {
	if c.ready() != nil {
		return ""
	}

	c.selfMu.Lock()
	defer c.selfMu.Unlock()

	if c.username != "" {
		return c.username
	}
	self, err := c.api.GetMe()
	if err != nil {
		return ""
	}
	c.username = self.UserName
	return c.username
}

func (c *Client) Send(ctx context.Context, text string) (MessageID, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	if strings.TrimSpace(text) == "" {
		return 0, &DeliveryError{Err: fmt.Errorf("message text is empty")}
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, &DeliveryError{Err: err}
	}

	msg := c.newMessage(text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, newDeliveryError(err)
	}

	return MessageID(sent.MessageID), nil
}

func (c *Client) newMessage(text string) tgbotapi.MessageConfig {
	if c.channelUsername != "" {
		return tgbotapi.NewMessageToChannel(c.channelUsername, text)
	}
	return tgbotapi.NewMessage(c.chatID, text)
}

func (c *Client) RegisterWebhook(ctx context.Context, url string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &RegistrationError{URL: url, Err: err}
	}

	webhook, err := tgbotapi.NewWebhook(strings.TrimSpace(url))
	if err != nil {
		return &RegistrationError{URL: url, Err: fmt.Errorf("parse webhook url: %w", err)}
	}
	webhook.AllowedUpdates = []string{"message", "channel_post"}

	resp, err := c.api.Request(webhook)
	if err != nil {
		return &RegistrationError{URL: url, Err: err}
	}
	if resp == nil || !resp.Ok {
		return &RegistrationError{URL: url, Err: fmt.Errorf("provider did not confirm webhook")}
	}

	return nil
}

func (c *Client) GetWebhookStatus(ctx context.Context) (WebhookInfo, error) {
	if err := c.ready(); err != nil {
		return WebhookInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return WebhookInfo{}, &QueryError{Err: err}
	}

	info, err := c.api.GetWebhookInfo()
	if err != nil {
		return WebhookInfo{}, &QueryError{Err: err}
	}

	out := WebhookInfo{
		URL:                  info.URL,
		HasCustomCertificate: info.HasCustomCertificate,
		PendingUpdateCount:   info.PendingUpdateCount,
		LastErrorMessage:     info.LastErrorMessage,
		MaxConnections:       info.MaxConnections,
	}
	if info.LastErrorDate > 0 {
		out.LastErrorDate = time.Unix(int64(info.LastErrorDate), 0).UTC()
	}

	return out, nil
}
