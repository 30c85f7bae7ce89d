package notify

import (
	"fmt"
	"strings"
	"time"
)

const maxMessageLen = 3800

// TradeEvent describes a confirmed fill for notification purposes.
type TradeEvent struct {
	Symbol   string
	Side     string
	Kind     string // OPEN_BASE / ADD_LAYER / EXIT
	Quantity float64
	Price    float64
	Layer    int
	At       time.Time
}

func (ev TradeEvent) Render() string {
	lines := []string{
		fmt.Sprintf("Side: `%s`", ev.Side),
		fmt.Sprintf("Qty: `%v`", ev.Quantity),
		fmt.Sprintf("Price: `%v`", ev.Price),
	}
	if ev.Layer > 0 {
		lines = append(lines, fmt.Sprintf("Layer: `%d`", ev.Layer))
	}
	return renderBlock(fmt.Sprintf("*%s %s*", ev.Kind, ev.Symbol), lines, ev.At)
}

// DriftEvent describes a reconciler correction.
type DriftEvent struct {
	Symbol      string
	LedgerQty   float64
	ExchangeQty float64
	At          time.Time
}

func (ev DriftEvent) Render() string {
	lines := []string{
		fmt.Sprintf("Ledger qty: `%v`", ev.LedgerQty),
		fmt.Sprintf("Exchange qty: `%v`", ev.ExchangeQty),
		"Ledger overwritten from exchange balance",
	}
	return renderBlock(fmt.Sprintf("*Drift corrected %s*", ev.Symbol), lines, ev.At)
}

func renderAlert(title string, lines []string) string {
	return renderBlock("*Alert: "+sanitize(title)+"*", lines, time.Now())
}

func renderBlock(header string, lines []string, at time.Time) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(sanitize(line))
		b.WriteString("\n")
	}
	if !at.IsZero() {
		b.WriteString(at.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	body := strings.TrimSpace(b.String())
	if len(body) > maxMessageLen {
		body = body[:maxMessageLen] + "..."
	}
	return body
}

func sanitize(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}
