package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"petling/internal/config"
	"petling/internal/pet"

	"gopkg.in/telebot.v3"
)

// Menu keyboard
var (
	menuBtnStatus = telebot.Btn{Text: "🐾 My pet"}
	menuBtnShop   = telebot.Btn{Text: "🛒 Shop"}
	menuBtnFeed   = telebot.Btn{Text: "🍖 Feed"}
	menuBtnPlay   = telebot.Btn{Text: "🎾 Play"}
	menuKeyboard  = &telebot.ReplyMarkup{ResizeKeyboard: true}
)

type Bot struct {
	B    *telebot.Bot
	pets *pet.Service
	log  *slog.Logger

	webAppURL string
	assetDir  string
}

func New(cfg config.Config, logger *slog.Logger, pets *pet.Service) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pref := telebot.Settings{
		Token:  cfg.BotToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := telebot.NewBot(pref)
	if err != nil {
		return nil, err
	}

	bot := &Bot{
		B:         b,
		pets:      pets,
		log:       logger,
		webAppURL: cfg.WebAppURL,
		assetDir:  cfg.AssetDir,
	}

	menuKeyboard.Reply(
		menuKeyboard.Row(menuBtnStatus, menuBtnShop),
		menuKeyboard.Row(menuBtnFeed, menuBtnPlay),
	)

	bot.registerHandlers()
	return bot, nil
}

func (bot *Bot) Start() {
	bot.B.Start()
}

func (bot *Bot) Stop() {
	bot.B.Stop()
}

func (bot *Bot) registerHandlers() {
	bot.B.Handle("/start", bot.requireUser(bot.handleStart))

	bot.B.Handle(&menuBtnStatus, bot.requireUser(bot.handleStatus))
	bot.B.Handle(&menuBtnShop, bot.requireUser(bot.handleShop))
	bot.B.Handle(&menuBtnFeed, bot.requireUser(bot.handleCare(pet.CareFeed)))
	bot.B.Handle(&menuBtnPlay, bot.requireUser(bot.handleCare(pet.CarePlay)))

	bot.B.Handle(telebot.OnCallback, bot.requireUser(bot.handleCallback))
}

// requireUser wraps a handler so the sender is registered before the handler
// runs. This is the implicit-registration path: the first message a user
// sends creates their record with a zero balance.
func (bot *Bot) requireUser(h telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		userID := strconv.FormatInt(sender.ID, 10)
		if _, err := bot.pets.EnsureUser(context.Background(), userID, sender.Username); err != nil {
			bot.log.Error("ensure user failed", "user_id", userID, "err", err)
			return c.Send("Something went wrong, please try again later.")
		}
		return h(c)
	}
}

func senderID(c telebot.Context) string {
	return strconv.FormatInt(c.Sender().ID, 10)
}

func (bot *Bot) handleStart(c telebot.Context) error {
	web := &telebot.ReplyMarkup{}
	web.Inline(web.Row(telebot.Btn{
		Text: "🌐 Open web app",
		URL:  fmt.Sprintf("%s/?tg_id=%d", bot.webAppURL, c.Sender().ID),
	}))
	if err := c.Send("Welcome to Petling\\! Buy a pet in the 🛒 Shop and keep it happy\\.", web, telebot.ModeMarkdownV2); err != nil {
		return err
	}
	return c.Send("Use the menu below to get around.", menuKeyboard)
}

func (bot *Bot) handleStatus(c telebot.Context) error {
	status, err := bot.pets.Pet(context.Background(), senderID(c))
	if err != nil {
		return bot.sendDomainError(c, err)
	}
	msg := fmt.Sprintf("🐾 *%s*\n🍖 Hunger: `%d/100`\n🎾 Happiness: `%d/100`\n🕒 Last care: %s",
		escapeMarkdownV2(status.Name), status.Hunger, status.Happiness,
		escapeMarkdownV2(status.LastCare.Format("2006-01-02 15:04")))
	return c.Send(msg, telebot.ModeMarkdownV2)
}

func (bot *Bot) handleShop(c telebot.Context) error {
	ctx := context.Background()
	entries, err := bot.pets.Catalog(ctx)
	if err != nil {
		return bot.sendDomainError(c, err)
	}
	profile, err := bot.pets.Profile(ctx, senderID(c))
	if err != nil {
		return bot.sendDomainError(c, err)
	}

	msg := fmt.Sprintf("🛒 *Pet shop*\n💰 Your balance: `%d`\n\n", profile.Balance)
	menu := &telebot.ReplyMarkup{}
	var rows []telebot.Row
	for _, e := range entries {
		msg += fmt.Sprintf("• *%s* — `%d` points\n", escapeMarkdownV2(e.Name), e.Price)
		rows = append(rows, menu.Row(telebot.Btn{
			Text:   fmt.Sprintf("Buy %s (%d)", e.Name, e.Price),
			Unique: "buy",
			Data:   e.Key,
		}))
	}
	if len(entries) == 0 {
		msg += "The shop is empty right now\\."
	}
	menu.Inline(rows...)
	return c.Send(msg, menu, telebot.ModeMarkdownV2)
}

func (bot *Bot) handleCare(action pet.CareAction) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		status, err := bot.pets.Care(context.Background(), pet.CareInput{
			UserID: senderID(c),
			Action: action,
		})
		if err != nil {
			return bot.sendDomainError(c, err)
		}
		verb := "fed"
		if action == pet.CarePlay {
			verb = "played with"
		}
		msg := fmt.Sprintf("You %s *%s*\\!\n🍖 Hunger: `%d/100`\n🎾 Happiness: `%d/100`",
			escapeMarkdownV2(verb), escapeMarkdownV2(status.Name), status.Hunger, status.Happiness)
		return c.Send(msg, telebot.ModeMarkdownV2)
	}
}

func (bot *Bot) handleCallback(c telebot.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	unique := strings.TrimSpace(cb.Unique)
	data := strings.TrimSpace(cb.Data)

	if unique != "buy" {
		return nil
	}

	status, err := bot.pets.Purchase(context.Background(), pet.PurchaseInput{
		UserID: senderID(c),
		PetKey: data,
	})
	if err != nil {
		if errors.Is(err, pet.ErrInsufficientBalance) {
			return c.Respond(&telebot.CallbackResponse{Text: "Not enough points!", ShowAlert: true})
		}
		bot.log.Error("purchase failed", "user_id", senderID(c), "pet_key", data, "err", err)
		return c.Respond(&telebot.CallbackResponse{Text: "Purchase failed."})
	}

	if err := c.Respond(&telebot.CallbackResponse{Text: "Purchase complete!"}); err != nil {
		return err
	}
	bot.sendAnimation(c, status)
	msg := fmt.Sprintf("🎉 You bought *%s*\\!\n🍖 Hunger: `%d/100`\n🎾 Happiness: `%d/100`",
		escapeMarkdownV2(status.Name), status.Hunger, status.Happiness)
	return c.Send(msg, telebot.ModeMarkdownV2)
}

// sendAnimation sends the catalog asset if it exists on disk. A missing
// asset is the deployment's problem, not the data layer's; the purchase has
// already succeeded.
func (bot *Bot) sendAnimation(c telebot.Context, status pet.PetStatus) {
	if status.Animation == "" {
		return
	}
	path := filepath.Join(bot.assetDir, status.Animation)
	if _, err := os.Stat(path); err != nil {
		bot.log.Warn("pet animation missing", "path", path)
		return
	}
	anim := &telebot.Animation{File: telebot.FromDisk(path)}
	if err := c.Send(anim); err != nil {
		bot.log.Warn("send animation failed", "path", path, "err", err)
	}
}

func (bot *Bot) sendDomainError(c telebot.Context, err error) error {
	switch {
	case errors.Is(err, pet.ErrNoPetOwned):
		return c.Send("You don't have a pet yet. Visit the 🛒 Shop to buy one!")
	case errors.Is(err, pet.ErrInsufficientBalance):
		return c.Send("Not enough points for that.")
	case errors.Is(err, pet.ErrUnknownPet):
		return c.Send("That pet is no longer in the shop.")
	default:
		bot.log.Error("bot operation failed", "user_id", senderID(c), "err", err)
		return c.Send("Something went wrong, please try again later.")
	}
}

func escapeMarkdownV2(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
