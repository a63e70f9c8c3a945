package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/birthdaybot/internal/domain"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || !msg.IsCommand() {
		return
	}

	// Keep username and delivery chat fresh on every contact.
	user, err := b.users.Register(msg.From.ID, msg.From.UserName, msg.Chat.ID)
	if err != nil {
		b.log.Error().Err(err).Int64("user", msg.From.ID).Msg("register failed")
		return
	}

	args := strings.TrimSpace(msg.CommandArguments())

	var reply string
	switch msg.Command() {
	case "start":
		reply = fmt.Sprintf("Hi! I remind you about birthdays of people you care about.\n\n%s", helpText)
	case "help":
		reply = helpText
	case "me":
		reply = b.users.FormatProfile(user)
	case "setbirthday":
		reply = b.cmdSetBirthday(user, args)
	case "settz":
		reply = b.cmdSetTimezone(user, args)
	case "setalert":
		reply = b.cmdSetAlert(user, args)
	case "addfriend":
		reply = b.cmdAddFriend(user, args)
	case "delfriend":
		reply = b.cmdDelFriend(user, args)
	case "friends":
		reply = b.cmdFriends(user)
	case "newgroup":
		reply = b.cmdNewGroup(user, args)
	case "joingroup":
		reply = b.cmdJoinGroup(user, args)
	case "leavegroup":
		reply = b.cmdLeaveGroup(user, args)
	case "addmember":
		reply = b.cmdAddMember(user, args)
	case "groups":
		reply = b.cmdGroups(user)
	case "birthdays":
		reply = b.cmdBirthdays(user)
	case "wishadd":
		reply = b.cmdWishAdd(user, args)
	case "wishdel":
		reply = b.cmdWishDel(user, args)
	case "wishlist":
		reply = b.cmdWishlist(user, args)
	case "calendar":
		b.cmdCalendar(ctx, user)
		return
	case "publishcal":
		reply = b.cmdPublishCalendar(ctx, user)
	default:
		return
	}

	if reply == "" {
		return
	}
	if err := b.SendMessage(ctx, msg.Chat.ID, reply); err != nil {
		b.log.Warn().Err(err).Int64("chat", msg.Chat.ID).Msg("reply failed")
	}
}

func (b *Bot) cmdSetBirthday(user *domain.User, args string) string {
	bd, err := b.users.SetBirthday(user.ID, args)
	if err != nil {
		return "❌ " + err.Error()
	}
	if bd.Year != 0 {
		return fmt.Sprintf("Saved: %02d.%02d.%d 🎂", bd.Day, bd.Month, bd.Year)
	}
	return fmt.Sprintf("Saved: %02d.%02d 🎂 (no year — I won't mention age)", bd.Day, bd.Month)
}

func (b *Bot) cmdSetTimezone(user *domain.User, args string) string {
	offset, err := b.users.SetTimezone(user.ID, args)
	if err != nil {
		return "❌ " + err.Error()
	}
	return fmt.Sprintf("Timezone set to UTC%+d 🌍", offset)
}

func (b *Bot) cmdSetAlert(user *domain.User, args string) string {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return "Usage: /setalert DAYS [HH:MM], e.g. /setalert 3 09:00"
	}
	timeText := ""
	if len(parts) >= 2 {
		timeText = parts[1]
	}
	prefs, err := b.users.SetAlert(user.ID, parts[0], timeText)
	if err != nil {
		return "❌ " + err.Error()
	}
	return fmt.Sprintf("Alerts: %d day(s) before, at %s your time 🔔", prefs.LeadDays, prefs.At)
}

func (b *Bot) cmdAddFriend(user *domain.User, args string) string {
	f, err := b.friends.Add(user.ID, args)
	if err != nil {
		return "❌ " + err.Error()
	}
	if f.Unregistered() {
		return fmt.Sprintf("Tracking <b>%s</b> (%02d.%02d) 📇", f.FriendName, f.Birthday.Day, f.Birthday.Month)
	}
	return fmt.Sprintf("Following <b>%s</b> 👤", f.FriendName)
}

func (b *Bot) cmdDelFriend(user *domain.User, args string) string {
	removed, err := b.friends.Delete(user.ID, args)
	if err != nil {
		return "❌ " + err.Error()
	}
	if !removed {
		return "No such friend."
	}
	return "Removed."
}

func (b *Bot) cmdFriends(user *domain.User) string {
	friends, err := b.friends.List(user.ID)
	if err != nil {
		b.log.Error().Err(err).Msg("list friends failed")
		return "Something went wrong, try again."
	}
	return b.friends.FormatFriendList(friends, time.Now().UTC())
}

func (b *Bot) cmdNewGroup(user *domain.User, args string) string {
	g, err := b.groups.Create(user, args)
	if err != nil {
		return "❌ " + err.Error()
	}
	return fmt.Sprintf("Group <b>%s</b> created. Share the code: <code>%s</code>", g.Name, g.Code)
}

func (b *Bot) cmdJoinGroup(user *domain.User, args string) string {
	g, err := b.groups.Join(args, user)
	if err != nil {
		return "❌ " + err.Error()
	}
	return fmt.Sprintf("You joined <b>%s</b> 👥", g.Name)
}

func (b *Bot) cmdLeaveGroup(user *domain.User, args string) string {
	g, err := b.groups.Leave(args, user.ID)
	if err != nil {
		return "❌ " + err.Error()
	}
	return fmt.Sprintf("You left <b>%s</b>.", g.Name)
}

func (b *Bot) cmdAddMember(user *domain.User, args string) string {
	parts := strings.Fields(args)
	if len(parts) < 3 {
		return "Usage: /addmember CODE Name DD.MM[.YYYY]"
	}
	name := strings.Join(parts[1:len(parts)-1], " ")
	m, err := b.groups.AddPlaceholder(user.ID, parts[0], name, parts[len(parts)-1])
	if err != nil {
		return "❌ " + err.Error()
	}
	return fmt.Sprintf("Added <b>%s</b> (%02d.%02d) to the group 📇", m.Name, m.Birthday.Day, m.Birthday.Month)
}

func (b *Bot) cmdGroups(user *domain.User) string {
	groups, err := b.groups.ListForUser(user.ID)
	if err != nil {
		b.log.Error().Err(err).Msg("list groups failed")
		return "Something went wrong, try again."
	}
	return b.groups.FormatGroupList(groups)
}

func (b *Bot) cmdBirthdays(user *domain.User) string {
	list, err := b.calendar.Upcoming(user, time.Now().UTC(), 90)
	if err != nil {
		b.log.Error().Err(err).Msg("upcoming birthdays failed")
		return "Something went wrong, try again."
	}
	return b.calendar.FormatUpcoming(list)
}

func (b *Bot) cmdWishAdd(user *domain.User, args string) string {
	item, err := b.wishlist.Add(user.ID, args)
	if err != nil {
		return "❌ " + err.Error()
	}
	return fmt.Sprintf("Added wish #%d 🎁", item.ID)
}

func (b *Bot) cmdWishDel(user *domain.User, args string) string {
	removed, err := b.wishlist.Delete(user.ID, args)
	if err != nil {
		return "❌ " + err.Error()
	}
	if !removed {
		return "No such wish."
	}
	return "Removed."
}

func (b *Bot) cmdWishlist(user *domain.User, args string) string {
	target := user
	own := true
	if args != "" {
		other, err := b.users.GetByUsername(args)
		if err != nil {
			b.log.Error().Err(err).Msg("wishlist lookup failed")
			return "Something went wrong, try again."
		}
		if other == nil {
			return "I don't know that user."
		}
		target = other
		own = false
	}

	items, err := b.wishlist.List(target.ID)
	if err != nil {
		b.log.Error().Err(err).Msg("list wishlist failed")
		return "Something went wrong, try again."
	}
	return b.wishlist.FormatWishlist(items, own)
}

func (b *Bot) cmdCalendar(ctx context.Context, user *domain.User) {
	data, err := b.calendar.ExportICS(user, time.Now().UTC())
	if err != nil {
		b.log.Error().Err(err).Msg("calendar export failed")
		_ = b.SendMessage(ctx, user.ChatID, "Something went wrong, try again.")
		return
	}

	doc := tgbotapi.NewDocument(user.ChatID, tgbotapi.FileBytes{
		Name:  "birthdays.ics",
		Bytes: data,
	})
	doc.Caption = "Your birthday calendar 📆"
	if _, err := b.api.Send(doc); err != nil {
		b.log.Warn().Err(err).Int64("chat", user.ChatID).Msg("send calendar failed")
	}
}

func (b *Bot) cmdPublishCalendar(ctx context.Context, user *domain.User) string {
	if err := b.calendar.Publish(ctx, user, time.Now().UTC()); err != nil {
		return "❌ " + err.Error()
	}
	return "Calendar published to CalDAV 📆"
}
