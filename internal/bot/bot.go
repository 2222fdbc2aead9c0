package bot

import (
	"context"
	"log/slog"

	"github.com/Spok95/salon-ledger/internal/domain/materials"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type MaterialReader interface {
	GetByID(ctx context.Context, id int64) (*materials.Material, error)
	ListLowStock(ctx context.Context) ([]materials.Material, error)
	Summary(ctx context.Context) (materials.Summary, error)
}

// Bot админский бот: алерты о низком остатке и пара команд для просмотра склада.
type Bot struct {
	api       *tgbotapi.BotAPI
	out       sender
	log       *slog.Logger
	materials MaterialReader
	adminChat int64
}

func New(api *tgbotapi.BotAPI, log *slog.Logger, materialsRepo MaterialReader, adminChatID int64) *Bot {
	return &Bot{
		api: api, out: api, log: log,
		materials: materialsRepo, adminChat: adminChatID,
	}
}

func (b *Bot) Run(ctx context.Context, timeoutSec int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSec
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message != nil {
				b.onMessage(ctx, upd.Message)
			}
		}
	}
}

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.out.Send(msg); err != nil {
		b.log.Error("send failed", "err", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = tgbotapi.ModeHTML
	b.send(m)
}

// StockLow шлёт алерт в админский чат; без чата молча пропускаем.
func (b *Bot) StockLow(_ context.Context, m materials.Material) {
	if b.adminChat == 0 {
		return
	}
	b.reply(b.adminChat, lowStockAlertText(m))
}
