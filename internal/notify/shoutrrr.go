package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

type sender interface {
	Send(message string, params *stypes.Params) []error
}

// ShoutrrrChannel sends the text payload through a shoutrrr service URL
type ShoutrrrChannel struct {
	name    string
	enabled bool
	sender  sender
}

// NewShoutrrrChannel validates serviceURL by building the sender.
// A disabled channel does not touch the URL.
func NewShoutrrrChannel(name string, enabled bool, serviceURL string, timeout time.Duration) (*ShoutrrrChannel, error) {
	ch := &ShoutrrrChannel{name: name, enabled: enabled}
	if !enabled {
		return ch, nil
	}

	router, err := shoutrrr.CreateSender(serviceURL)
	if err != nil {
		// the raw URL carries credentials, keep it out of the error
		return nil, &models.ConfigError{Field: name, Reason: "invalid notification settings", Err: fmt.Errorf("%s: %s", name, redact(err))}
	}
	if timeout > 0 {
		router.Timeout = timeout
	}
	router.SetLogger(log.New(io.Discard, "", 0))
	ch.sender = router
	return ch, nil
}

func (c *ShoutrrrChannel) Name() string  { return c.name }
func (c *ShoutrrrChannel) Enabled() bool { return c.enabled }

func (c *ShoutrrrChannel) Send(ctx context.Context, p *Payload) error {
	if c.sender == nil {
		return &models.TransportError{Channel: c.name, Err: fmt.Errorf("sender not initialized")}
	}

	params := stypes.Params{}
	if p.Title != "" {
		params.SetTitle(p.Title)
	}

	// the router has no context support, so wait on both
	done := make(chan []error, 1)
	go func() {
		done <- c.sender.Send(p.Body, &params)
	}()

	select {
	case errs := <-done:
		for _, err := range errs {
			if err != nil {
				return &models.TransportError{Channel: c.name, Err: err}
			}
		}
		return nil
	case <-ctx.Done():
		return &models.TransportError{Channel: c.name, Err: ctx.Err()}
	}
}

// EmailURL builds a shoutrrr smtp URL
func EmailURL(server string, port int, sender, password, recipient string) string {
	u := url.URL{
		Scheme: "smtp",
		Host:   net.JoinHostPort(server, strconv.Itoa(port)),
		Path:   "/",
	}
	if password != "" {
		u.User = url.UserPassword(sender, password)
	} else {
		u.User = url.User(sender)
	}
	q := url.Values{}
	q.Set("fromaddress", sender)
	q.Set("toaddresses", recipient)
	q.Set("usestarttls", "yes")
	u.RawQuery = q.Encode()
	return u.String()
}

// PushbulletURL builds a shoutrrr pushbullet URL that pushes to every device of the account
func PushbulletURL(apiKey string) string {
	return "pushbullet://" + url.PathEscape(apiKey)
}

// TelegramURL builds a shoutrrr telegram URL. The bot token already holds
// the user:password separator shoutrrr expects.
func TelegramURL(botToken, chatID string) string {
	q := url.Values{}
	q.Set("chats", chatID)
	return fmt.Sprintf("telegram://%s@telegram/?%s", botToken, q.Encode())
}

func redact(err error) string {
	if ue, ok := err.(*url.Error); ok {
		return ue.Err.Error()
	}
	return err.Error()
}
