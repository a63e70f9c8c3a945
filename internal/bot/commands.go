package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "start", Description: "🚀 Register and get started"},
		{Command: "me", Description: "⚙️ My settings"},
		{Command: "setbirthday", Description: "🎂 Set my birthday (DD.MM.YYYY)"},
		{Command: "settz", Description: "🌍 Set my timezone (UTC offset)"},
		{Command: "setalert", Description: "🔔 Set alert lead days and time"},
		{Command: "friends", Description: "👤 My friends"},
		{Command: "groups", Description: "👥 My groups"},
		{Command: "birthdays", Description: "📅 Upcoming birthdays"},
		{Command: "wishlist", Description: "🎁 Wishlist"},
		{Command: "calendar", Description: "📆 Export birthdays as .ics"},
		{Command: "help", Description: "❓ Help"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		b.log.Warn().Err(err).Msg("failed to set commands")
	}
}

const helpText = `<b>Birthday reminders</b>

/setbirthday DD.MM.YYYY — set your birthday (year optional)
/settz +3 — your timezone as a UTC hour offset
/setalert 3 09:00 — remind 3 days before, at 09:00 your time
/me — show your settings

<b>Friends</b>
/addfriend @user — follow a registered user
/addfriend Anna 14.03.1992 — track someone not on the bot
/delfriend Anna
/friends

<b>Groups</b>
/newgroup Office — create a group, share its code
/joingroup CODE
/leavegroup CODE
/addmember CODE Name DD.MM — add someone without Telegram
/groups

<b>More</b>
/birthdays — upcoming birthdays you watch
/wishadd title | url | price — add to your wishlist
/wishdel 3 — remove wish #3
/wishlist [@user] — view a wishlist
/calendar — your birthdays as an .ics file
/publishcal — push the calendar to CalDAV`
