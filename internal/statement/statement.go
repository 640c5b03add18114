package statement

import (
	"fmt"
	"time"

	"github.com/Dan9191/gente-bank/internal/models"
	"github.com/beevik/etree"
)

// ContentType is the media type of a rendered statement
const ContentType = "application/xml; charset=utf-8"

const moneyScale = 2

// RenderXML builds the account statement document
func RenderXML(view models.AccountView, generatedAt time.Time) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("statement")
	root.CreateAttr("account", view.AccountNumber)
	root.CreateAttr("generatedAt", generatedAt.UTC().Format(time.RFC3339))

	root.CreateElement("holder").SetText(view.Username)
	root.CreateElement("agency").SetText(view.Agency)
	root.CreateElement("kind").SetText(string(view.Kind))
	root.CreateElement("balance").SetText(view.Balance.StringFixed(moneyScale))

	txs := root.CreateElement("transactions")
	for _, t := range view.Transactions {
		el := txs.CreateElement("transaction")
		el.CreateAttr("kind", string(t.Kind))
		el.CreateAttr("date", t.Date.UTC().Format(time.RFC3339))
		el.SetText(t.Amount.StringFixed(moneyScale))
	}

	deposits, withdrawals := models.Totals(view.Transactions)
	totals := root.CreateElement("totals")
	totals.CreateAttr("deposits", deposits.StringFixed(moneyScale))
	totals.CreateAttr("withdrawals", withdrawals.StringFixed(moneyScale))

	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to write statement: %w", err)
	}
	return out, nil
}
