package bot

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) onMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}
	chatID := msg.Chat.ID
	if chatID != b.adminChat {
		b.reply(chatID, "Бот доступен только администратору салона.")
		return
	}

	switch msg.Command() {
	case "start", "help":
		b.reply(chatID, helpText)
	case "low":
		list, err := b.materials.ListLowStock(ctx)
		if err != nil {
			b.log.Error("list low stock failed", "err", err)
			b.reply(chatID, "Не удалось получить список материалов.")
			return
		}
		b.reply(chatID, lowStockListText(list))
	case "summary":
		s, err := b.materials.Summary(ctx)
		if err != nil {
			b.log.Error("stock summary failed", "err", err)
			b.reply(chatID, "Не удалось получить сводку.")
			return
		}
		b.reply(chatID, summaryText(s))
	case "stock":
		arg := strings.TrimSpace(msg.CommandArguments())
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			b.reply(chatID, "Использование: /stock &lt;id материала&gt;")
			return
		}
		m, err := b.materials.GetByID(ctx, id)
		if err != nil {
			b.log.Error("get material failed", "material_id", id, "err", err)
			b.reply(chatID, "Не удалось получить материал.")
			return
		}
		if m == nil {
			b.reply(chatID, "Материал не найден.")
			return
		}
		b.reply(chatID, materialText(*m))
	default:
		b.reply(chatID, "Неизвестная команда. /help — список команд.")
	}
}
