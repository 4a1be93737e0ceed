package scan

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"dexalert/internal/models"
	"dexalert/internal/presets"
)

// SummaryMessage is broadcast to every user once a day
const SummaryMessage = "📊 Daily Summary: Use /pnl summary to view your stats!"

const tradeBotURL = "https://t.me/basedbot_bot?start=trade_"

func sourceBadge(t models.WatchedToken) string {
	if t.Source == models.SourceDex {
		return "🔷 DEX"
	}
	return "✏️ MANUAL"
}

func rsiMarker(ind models.IndicatorSnapshot) string {
	rsi, ok := ind.RSIValue()
	switch {
	case !ok:
		return ""
	case rsi <= 30:
		return " 🟢"
	case rsi >= 70:
		return " 🔴"
	default:
		return ""
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// PresetAlertMessage renders a preset alert as Telegram HTML
func PresetAlertMessage(token models.WatchedToken, ind models.IndicatorSnapshot, pred models.Prediction, preset presets.Preset) string {
	name := "CUSTOM"
	if preset.Name != "" {
		name = preset.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔔 <b>ALERT: %s</b> 🔔\n", html.EscapeString(name))
	fmt.Fprintf(&b, "%s | <b>$%s</b> | %s\n\n", sourceBadge(token), html.EscapeString(token.Symbol), html.EscapeString(token.Chain))

	b.WriteString("📊 <b>Technical Indicators</b>\n")
	fmt.Fprintf(&b, "RSI (5m): %s%s\n", ind.RSI, rsiMarker(ind))
	fmt.Fprintf(&b, "MACD: %s\n", ind.MACD)
	fmt.Fprintf(&b, "EMA 9: %s | EMA 21: %s\n\n", ind.EMA9, ind.EMA21)

	fmt.Fprintf(&b, "🤖 <b>AI PREDICTION</b> (%s%% Accuracy)\n", formatNumber(pred.Accuracy))
	fmt.Fprintf(&b, "💰 Entry: $%.6f\n", pred.Entry)
	fmt.Fprintf(&b, "🛑 Stop Loss: $%.6f\n", pred.SL)
	fmt.Fprintf(&b, "🎯 TP1: $%.6f (%s%% in %s)\n", pred.TP1, formatNumber(pred.Prob1), html.EscapeString(pred.Time1))
	fmt.Fprintf(&b, "🚀 TP2: $%.6f (%s%% in %s)\n", pred.TP2, formatNumber(pred.Prob2), html.EscapeString(pred.Time2))
	fmt.Fprintf(&b, "⏱ Duration: %s\n\n", html.EscapeString(pred.Duration))

	addr := html.EscapeString(token.Address)
	fmt.Fprintf(&b, "<a href=\"%s%s\">Trade Now</a>\n", tradeBotURL, addr)
	fmt.Fprintf(&b, "Copy Address: <code>%s</code>\n", addr)
	fmt.Fprintf(&b, "<a href=\"%s\">View Chart</a>", html.EscapeString(token.URL))
	return b.String()
}

// PriceAlertMessage renders a fired price alert as Telegram HTML
func PriceAlertMessage(token models.WatchedToken, price float64, alert models.PriceAlert) string {
	symbol := html.EscapeString(token.Symbol)

	var b strings.Builder
	switch alert.Type {
	case models.AlertAbove:
		b.WriteString("🚀 <b>Price Alert: Above Target!</b>\n\n")
		fmt.Fprintf(&b, "<b>%s</b> has risen above $%s\n", symbol, formatNumber(alert.Price))
	case models.AlertBelow:
		b.WriteString("📉 <b>Price Alert: Below Target!</b>\n\n")
		fmt.Fprintf(&b, "<b>%s</b> has fallen below $%s\n", symbol, formatNumber(alert.Price))
	case models.AlertRange:
		b.WriteString("🎯 <b>Price Alert: In Range!</b>\n\n")
		fmt.Fprintf(&b, "<b>%s</b> is now in the $%s-$%s range\n", symbol, formatNumber(alert.MinPrice), formatNumber(alert.MaxPrice))
	}
	fmt.Fprintf(&b, "Current Price: $%.6f", price)
	fmt.Fprintf(&b, "\n\n<a href=\"%s\">View Chart</a>", html.EscapeString(token.URL))
	return b.String()
}

func presetTitle(p presets.Preset, token models.WatchedToken) string {
	return fmt.Sprintf("%s: %s", p.Name, token.Symbol)
}

func priceAlertTitle(alert models.PriceAlert, token models.WatchedToken) string {
	return fmt.Sprintf("Price Alert (%s): %s", alert.Type, token.Symbol)
}
