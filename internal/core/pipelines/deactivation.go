package pipelines

import (
	"github.com/JonMunkholm/bulkimport/internal/core"
)

// Deactivation is the key of the product deactivation pipeline.
const Deactivation = "deactivation"

func init() {
	registerDeactivation()
}

func registerDeactivation() {
	core.Register(core.PipelineDefinition{
		Key:           Deactivation,
		Label:         "Product deactivation",
		IdentifierKey: "product_code",
		Fields: []core.FieldSpec{
			{Key: "product_code", Label: "Product code", Required: true, Aliases: []string{"product code", "code", "sku", "item"}},
			{Key: "product_name", Label: "Product name", Aliases: []string{"product name", "name", "description"}},
		},
		MinHeaderCells:    1,
		ValidateOnConfirm: true,
		Payload:           core.PayloadTargetIDs,
	})
}
