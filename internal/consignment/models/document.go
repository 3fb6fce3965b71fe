package models

import "time"

// EADVersion is the schema version stamped into every e-AD document.
const EADVersion = "1.0"

// Document is the notarized representation of a consignment.
type Document map[string]any

// DocumentBuilder maps a consignment onto the document that is hashed and
// anchored at dispatch. The layout is a legal concern, so it is swappable.
type DocumentBuilder func(c *Consignment, dispatchedAt time.Time) Document

// BuildEAD is the default electronic administrative document layout.
func BuildEAD(c *Consignment, dispatchedAt time.Time) Document {
	return Document{
		"arc":     c.Reference,
		"version": EADVersion,
		"movement": map[string]any{
			"created_at":    c.CreatedAt.UTC().Format(time.RFC3339Nano),
			"dispatched_at": dispatchedAt.UTC().Format(time.RFC3339Nano),
		},
		"consignor": map[string]any{
			"address": c.Sender.String(),
		},
		"consignee": map[string]any{
			"address": c.Receiver.String(),
		},
		"goods": map[string]any{
			"category": string(c.GoodsCategory),
			"quantity": c.Quantity.String(),
			"unit":     string(c.Unit),
		},
	}
}
