package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/mtzanidakis/digifuse/internal/catalog"
	"github.com/mtzanidakis/digifuse/internal/config"
	"github.com/mtzanidakis/digifuse/internal/domain"
)

const usage = "Usage: /fuse <Digimon> <Digimon>\nExample: /fuse Agumon Gabumon\nQuote names with spaces: /fuse \"Metal Greymon\" Gabumon"

type Catalog interface {
	FindPair(ctx context.Context, a, b string) (*domain.Creature, *domain.Creature, error)
}

type Fuser interface {
	Create(ctx context.Context, req domain.FusionRequest) domain.FusionResult
}

type Bot struct {
	bot     *telego.Bot
	handler *th.BotHandler
	catalog Catalog
	fusion  Fuser
	cfg     config.TelegramConfig
	logger  *slog.Logger
	cancel  context.CancelFunc
}

func NewBot(cfg config.TelegramConfig, cat Catalog, fusion Fuser, logger *slog.Logger) (*Bot, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Bot{
		bot:     bot,
		catalog: cat,
		fusion:  fusion,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

func (b *Bot) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	updates, err := b.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(b.bot, updates)
	if err != nil {
		cancel()
		return fmt.Errorf("create handler: %w", err)
	}
	b.handler = handler

	handler.HandleMessage(func(hctx *th.Context, message telego.Message) error {
		b.handleMessage(ctx, message)
		return nil
	})

	go handler.Start()
	b.logger.Info("telegram bot started")

	<-ctx.Done()
	_ = handler.Stop()
	b.logger.Info("telegram bot stopped")
	return nil
}

func (b *Bot) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.handler != nil {
		_ = b.handler.Stop()
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg telego.Message) {
	if msg.From == nil {
		return
	}
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if !b.allowed(userID) {
		b.logger.Warn("unauthorized telegram user", "user_id", userID, "chat_id", chatID)
		return
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if !strings.HasPrefix(text, "/fuse") {
		return
	}

	_ = b.sendChatAction(ctx, chatID, "upload_photo")

	reply := b.respond(ctx, text)
	if err := b.SendMessage(ctx, chatID, reply); err != nil {
		b.logger.Error("failed to send telegram message", "chat", chatID, "error", err)
	}
}

func (b *Bot) allowed(userID int64) bool {
	return len(b.cfg.AllowFrom) == 0 || slices.Contains(b.cfg.AllowFrom, userID)
}

// respond runs a /fuse command and returns the reply text.
func (b *Bot) respond(ctx context.Context, text string) string {
	nameA, nameB, ok := parseFuseCommand(text)
	if !ok {
		return usage
	}
	if strings.EqualFold(nameA, nameB) {
		return "Pick two different Digimon to fuse."
	}

	a, c, err := b.catalog.FindPair(ctx, nameA, nameB)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return "Digimon not found. Check the spelling and try again."
	case err != nil:
		b.logger.Error("catalog lookup failed", "error", err)
		return "The Digimon catalog is unavailable right now, try again later."
	}

	result := b.fusion.Create(ctx, domain.FusionRequest{
		NameA:  a.Name,
		NameB:  c.Name,
		ImageA: a.Image,
		ImageB: c.Image,
	})
	return formatFusion(a.Name, c.Name, result)
}

func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range chunkMessage(text, 4096) {
		msg := tu.Message(tu.ID(chatID), chunk)
		if _, err := b.bot.SendMessage(ctx, msg); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func (b *Bot) sendChatAction(ctx context.Context, chatID int64, action string) error {
	return b.bot.SendChatAction(ctx, tu.ChatAction(tu.ID(chatID), action))
}
