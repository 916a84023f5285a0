// Package narrative produces AI commentary for an indicator table, streamed as text chunks.
package narrative

import (
	"fmt"
	"strings"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/service"
)

// promptRows is how many trailing rows are rendered into the prompt.
const promptRows = 10

var marketNames = map[models.MarketType]string{
	models.MarketA:   "China A-share",
	models.MarketHK:  "Hong Kong",
	models.MarketUS:  "US",
	models.MarketETF: "exchange-traded fund",
	models.MarketLOF: "listed open-end fund",
}

// BuildPrompt renders the trailing indicator rows and asks for a structured technical review.
func BuildPrompt(req service.NarrativeRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a technical analyst. Review %s security %s using the daily indicators below.\n\n",
		marketNames[req.Market], req.Symbol)

	sb.WriteString("date | close | change% | volume | MA5 | MA20 | MA60 | MACD | signal | RSI | vol ratio | ATR\n")
	for _, r := range req.Table.Tail(promptRows) {
		change := "-"
		if r.ChangePct != nil {
			change = fmt.Sprintf("%.2f", *r.ChangePct)
		}
		fmt.Fprintf(&sb, "%s | %.3f | %s | %.0f | %.3f | %.3f | %.3f | %.4f | %.4f | %.2f | %.2f | %.3f\n",
			r.Date.Format("2006-01-02"), r.Close, change, r.Volume,
			r.MA5, r.MA20, r.MA60, r.MACD, r.Signal, r.RSI, r.VolumeRatio, r.ATR)
	}

	if latest, _, ok := req.Table.Latest(); ok && latest.Volatility > 0 {
		fmt.Fprintf(&sb, "\nAnnualized 20-day realized volatility: %.2f%%\n", latest.Volatility*100)
	}

	sb.WriteString(`
Cover, in order:
1. Trend: moving-average alignment and where price sits against it.
2. Momentum: MACD and RSI readings, divergences.
3. Volume: whether participation confirms the move.
4. Support and resistance levels worth watching.
5. Risks and a short-term outlook.
Keep it under 400 words. Do not give personalised financial advice.`)
	return sb.String()
}
