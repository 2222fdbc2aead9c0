package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/Spok95/salon-ledger/internal/domain/materials"
)

const helpText = `Команды:
/low — материалы с низким остатком
/stock &lt;id&gt; — остаток по материалу
/summary — сводка по складу`

func title(m materials.Material) string {
	s := m.Name
	if m.Brand != "" {
		s = m.Brand + " " + s
	}
	if m.Color != "" {
		s += " (" + m.Color + ")"
	}
	return html.EscapeString(s)
}

func lowStockAlertText(m materials.Material) string {
	return fmt.Sprintf("⚠️ Заканчивается <b>%s</b> (#%d): осталось %s %s, минимум %s.",
		title(m), m.ID, m.CurrentStock.String(), m.UnitType, m.MinStockLevel.String())
}

func lowStockListText(list []materials.Material) string {
	if len(list) == 0 {
		return "Все материалы в норме 🟢"
	}
	var sb strings.Builder
	sb.WriteString("Низкий остаток:\n")
	for _, m := range list {
		fmt.Fprintf(&sb, "• #%d %s — %s / %s %s\n",
			m.ID, title(m), m.CurrentStock.String(), m.MinStockLevel.String(), m.UnitType)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func materialText(m materials.Material) string {
	status := "🟢"
	if m.LowStock() {
		status = "⚠️"
	}
	if !m.Active {
		status = "🚫"
	}
	return fmt.Sprintf("%s <b>%s</b> (#%d)\nОстаток: %s %s\nМинимум: %s",
		status, title(m), m.ID, m.CurrentStock.String(), m.UnitType, m.MinStockLevel.String())
}

func summaryText(s materials.Summary) string {
	return fmt.Sprintf("Материалов: %d\nНизкий остаток: %d\nСтоимость склада: %s",
		s.TotalMaterials, s.LowStockCount, s.TotalValue.StringFixed(2))
}
