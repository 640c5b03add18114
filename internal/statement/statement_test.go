package statement

import (
	"testing"
	"time"

	"github.com/Dan9191/gente-bank/internal/models"
	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderXML(t *testing.T) {
	day := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	view := models.AccountView{
		AccountNumber: "48213",
		Username:      "maria",
		Agency:        "0001",
		Kind:          models.KindSavings,
		Balance:       decimal.RequireFromString("70.5"),
		Transactions: []models.Transaction{
			{Kind: models.TransactionDeposit, Amount: decimal.RequireFromString("100.5"), Date: day},
			{Kind: models.TransactionWithdrawal, Amount: decimal.RequireFromString("30"), Date: day.Add(time.Hour)},
		},
	}

	raw, err := RenderXML(view, day.Add(24*time.Hour))
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(raw))

	root := doc.SelectElement("statement")
	require.NotNil(t, root)
	assert.Equal(t, "48213", root.SelectAttrValue("account", ""))
	assert.Equal(t, "2026-03-02T09:30:00Z", root.SelectAttrValue("generatedAt", ""))
	assert.Equal(t, "maria", root.FindElement("./holder").Text())
	assert.Equal(t, "savings", root.FindElement("./kind").Text())
	assert.Equal(t, "70.50", root.FindElement("./balance").Text())

	txs := root.FindElements("./transactions/transaction")
	require.Len(t, txs, 2)
	assert.Equal(t, "deposit", txs[0].SelectAttrValue("kind", ""))
	assert.Equal(t, "100.50", txs[0].Text())
	assert.Equal(t, "withdrawal", txs[1].SelectAttrValue("kind", ""))
	assert.Equal(t, "2026-03-01T10:30:00Z", txs[1].SelectAttrValue("date", ""))

	totals := root.FindElement("./totals")
	require.NotNil(t, totals)
	assert.Equal(t, "100.50", totals.SelectAttrValue("deposits", ""))
	assert.Equal(t, "30.00", totals.SelectAttrValue("withdrawals", ""))
}

func TestRenderXML_EmptyLog(t *testing.T) {
	raw, err := RenderXML(models.AccountView{AccountNumber: "10000", Balance: decimal.Zero}, time.Now())
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(raw))
	assert.Empty(t, doc.FindElements("//transaction"))
	assert.Equal(t, "0.00", doc.FindElement("//totals").SelectAttrValue("deposits", ""))
}
