package payments

import (
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	pkgcheckout "github.com/angelmondragon/homedoc-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
	"github.com/angelmondragon/homedoc-backend/pkg/money"
)

const productMetadataID = "medication_id"

// snapshotFromLineItems rebuilds the cart from the processor's own line items.
// Every item must carry a medication id in its product metadata.
func snapshotFromLineItems(items []*stripe.LineItem) (pkgcheckout.Snapshot, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout session has no line items")
	}

	snapshot := make(pkgcheckout.Snapshot, 0, len(items))
	for i, item := range items {
		if item == nil || item.Price == nil || item.Price.Product == nil {
			return nil, lineItemConflict(i, "line item has no product")
		}
		raw := strings.TrimSpace(item.Price.Product.Metadata[productMetadataID])
		medicationID, err := uuid.Parse(raw)
		if err != nil || medicationID == uuid.Nil {
			return nil, lineItemConflict(i, "line item has no medication id")
		}
		if item.Quantity < 1 {
			return nil, lineItemConflict(i, "line item has no quantity")
		}
		snapshot = append(snapshot, pkgcheckout.SnapshotEntry{
			MedicationID: medicationID,
			Quantity:     int(item.Quantity),
			Price:        money.FromMinorUnits(item.Price.UnitAmount),
			Name:         item.Description,
		})
	}
	return snapshot, nil
}

func lineItemConflict(index int, reason string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, reason).WithDetails(map[string]any{
		"line_item_index": index,
	})
}
