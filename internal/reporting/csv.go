package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders all trades in the document as CSV.
func RenderCSV(doc *Document) string {
	var sb strings.Builder

	sb.WriteString("run_id,code,name,seq,buy_date,buy_price,sell_date,sell_price,")
	sb.WriteString("shares,profit,profit_pct,reason,hold_days\n")

	for _, res := range doc.Results {
		for _, tr := range res.Trades {
			sb.WriteString(fmt.Sprintf("%s,%s,%s,%d,%s,%.2f,%s,%.2f,%d,%.2f,%.2f,%s,%d\n",
				doc.RunID,
				res.StockCode,
				res.StockName,
				tr.Seq,
				tr.BuyDate,
				tr.BuyPrice,
				tr.SellDate,
				tr.SellPrice,
				tr.Shares,
				tr.Profit,
				tr.ProfitPct,
				tr.Reason,
				tr.HoldDays,
			))
		}
	}

	return sb.String()
}
