package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tazhate/birthdaybot/config"
	"github.com/tazhate/birthdaybot/internal/domain"
	"github.com/tazhate/birthdaybot/internal/service"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	cfg      *config.Config
	users    *service.UserService
	friends  *service.FriendService
	groups   *service.GroupService
	wishlist *service.WishlistService
	calendar *service.CalendarService

	// Telegram allows ~30 messages per second bot-wide; burst fan-outs
	// on popular birthdays must not trip that.
	limiter *rate.Limiter
	log     zerolog.Logger
}

func New(
	cfg *config.Config,
	users *service.UserService,
	friends *service.FriendService,
	groups *service.GroupService,
	wishlist *service.WishlistService,
	calendar *service.CalendarService,
	log zerolog.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	b := &Bot{
		api:      api,
		cfg:      cfg,
		users:    users,
		friends:  friends,
		groups:   groups,
		wishlist: wishlist,
		calendar: calendar,
		limiter:  rate.NewLimiter(rate.Limit(25), 5),
		log:      log.With().Str("component", "bot").Logger(),
	}

	b.log.Info().Str("username", api.Self.UserName).Msg("authorized")
	b.setCommands()

	return b, nil
}

// Start consumes updates via long polling until ctx is canceled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
}

// SendMessage sends HTML-formatted text, respecting the global rate cap.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Deliver implements service.Deliverer: the engine supplies structured
// facts, the transport owns the wording.
func (b *Bot) Deliver(ctx context.Context, n *domain.Notification) error {
	name := n.Subject.Name
	if name == "" {
		name = string(n.Subject.Key)
	}

	agePart := ""
	if n.HasAge {
		agePart = fmt.Sprintf(" (turns %d)", n.TurnsAge)
	}

	var text string
	if n.DaysUntil == 0 {
		text = fmt.Sprintf("🎂 <b>%s</b> has their birthday today%s 🎉", name, agePart)
	} else {
		text = fmt.Sprintf("🎂 <b>%s</b> has a birthday in %d day(s)%s — %s",
			name, n.DaysUntil, agePart, n.Occurrence.Format("02.01"))
	}

	return b.SendMessage(ctx, n.Recipient.ChatID, text)
}
