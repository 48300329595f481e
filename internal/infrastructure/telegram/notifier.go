package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

const readButtonText = "🔗 Читать новость"

// Options tune the Bot API connection.
type Options struct {
	// APIEndpoint is a format string with the token and method placeholders,
	// tgbotapi.APIEndpoint when empty.
	APIEndpoint string
	Timeout     time.Duration
}

// Notifier publishes articles to a Telegram channel via the Bot API.
type Notifier struct {
	api             *tgbotapi.BotAPI
	chatID          int64
	channelUsername string
}

var _ ports.Publisher = (*Notifier)(nil)

// NewNotifier authorises the bot token. channel is either a numeric chat id
// or an @username.
func NewNotifier(botToken, channel string, opts Options) (*Notifier, error) {
	if botToken == "" || channel == "" {
		return nil, fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := opts.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	api, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("authorise bot: %w", err)
	}

	n := &Notifier{api: api}
	channel = strings.TrimSpace(channel)
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		n.chatID = id
	} else {
		n.channelUsername = channel
	}
	return n, nil
}

// SendPhoto posts the image with the message text as its caption.
func (n *Notifier) SendPhoto(ctx context.Context, msg domain.FormattedMessage) error {
	photo := tgbotapi.NewPhoto(n.chatID, tgbotapi.FileURL(msg.ImageURL))
	photo.ChannelUsername = n.channelUsername
	photo.Caption = msg.Text
	photo.ParseMode = tgbotapi.ModeHTML
	photo.ReplyMarkup = readButton(msg.ActionURL)

	return n.send(ctx, "sendPhoto", photo)
}

// SendText posts a text message; link previews stay enabled.
func (n *Notifier) SendText(ctx context.Context, msg domain.FormattedMessage) error {
	text := tgbotapi.NewMessage(n.chatID, msg.Text)
	text.ChannelUsername = n.channelUsername
	text.ParseMode = tgbotapi.ModeHTML
	text.DisableWebPagePreview = false
	text.ReplyMarkup = readButton(msg.ActionURL)

	return n.send(ctx, "sendMessage", text)
}

func (n *Notifier) send(ctx context.Context, method string, c tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.api.Send(c); err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	return nil
}

func readButton(url string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(readButtonText, url),
		),
	)
}
