package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "emcs/pkg/domain"
	dErrors "emcs/pkg/domain-errors"
)

// CreateRequest carries the inputs for opening a consignment.
type CreateRequest struct {
	Sender        id.PartyID      `json:"sender"`
	Receiver      id.PartyID      `json:"receiver"`
	GoodsCategory GoodsCategory   `json:"goods_category"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          Unit            `json:"unit"`
}

// Validate normalizes the request in place and checks it.
// Follows validation order: Required -> Syntax -> Semantic.
func (r *CreateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}

	if r.Sender == "" {
		return dErrors.New(dErrors.CodeValidation, "sender is required")
	}
	if r.Receiver == "" {
		return dErrors.New(dErrors.CodeValidation, "receiver is required")
	}
	if r.GoodsCategory == "" {
		return dErrors.New(dErrors.CodeValidation, "goods_category is required")
	}
	if r.Unit == "" {
		return dErrors.New(dErrors.CodeValidation, "unit is required")
	}

	sender, err := id.ParsePartyID(string(r.Sender))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid sender: "+err.Error())
	}
	receiver, err := id.ParsePartyID(string(r.Receiver))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid receiver: "+err.Error())
	}
	category, err := ParseGoodsCategory(string(r.GoodsCategory))
	if err != nil {
		return err
	}
	unit, err := ParseUnit(string(r.Unit))
	if err != nil {
		return err
	}

	if !r.Quantity.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "quantity must be greater than zero")
	}
	if sender == receiver {
		return dErrors.New(dErrors.CodeValidation, "sender and receiver must differ")
	}

	r.Sender, r.Receiver, r.GoodsCategory, r.Unit = sender, receiver, category, unit
	return nil
}

// Result is the success payload of a lifecycle operation.
type Result struct {
	Consignment   *Consignment `json:"consignment"`
	TransactionID string       `json:"transaction_id"`
	Timestamp     time.Time    `json:"timestamp"`
}
