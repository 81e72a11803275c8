package pipelines

import (
	"github.com/JonMunkholm/bulkimport/internal/core"
)

// OpeningStock is the key of the opening stock pipeline.
const OpeningStock = "opening_stock"

func init() {
	registerOpeningStock()
}

func registerOpeningStock() {
	core.Register(core.PipelineDefinition{
		Key:           OpeningStock,
		Label:         "Opening stock",
		IdentifierKey: "product_code",
		Fields: []core.FieldSpec{
			{Key: "product_code", Label: "Product code", Required: true, Aliases: []string{"product code", "code", "sku", "item"}},
			{Key: "product_name", Label: "Product name", Aliases: []string{"product name", "name", "description"}},
			{Key: "quantity", Label: "Quantity", Required: true, Aliases: []string{"qty", "quantity", "stock"}},
			{Key: "price", Label: "Unit price", Required: true, Aliases: []string{"price", "cost"}},
			{Key: "unit", Label: "Unit", Aliases: []string{"uom", "unit"}},
		},
		MinHeaderCells:   3,
		RequireFullMatch: true,
		Payload:          core.PayloadItems,
		ContextKeys:      []string{"branch_id", "date"},
		ValueField:       "total",
		Derive:           deriveStockTotal,
	})
}

// deriveStockTotal sets total = quantity * price rounded to cents.
// Unreadable numbers count as zero.
func deriveStockTotal(values map[string]string) {
	qty := core.ParseNumber(values["quantity"])
	price := core.ParseNumber(values["price"])
	values["total"] = core.RoundMoney(qty.Mul(price)).String()
}
