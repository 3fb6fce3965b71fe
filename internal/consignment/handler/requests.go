package handler

import (
	"strings"

	"github.com/shopspring/decimal"

	"emcs/internal/consignment/models"
	id "emcs/pkg/domain"
	dErrors "emcs/pkg/domain-errors"
)

// CreateConsignmentRequest is the body of POST /consignments.
type CreateConsignmentRequest struct {
	Receiver      string          `json:"receiver"`
	GoodsCategory string          `json:"goods_category"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          string          `json:"unit"`

	category models.GoodsCategory
	unit     models.Unit
}

// Validate checks the fields the handler needs before calling the service.
// Address and cross-field rules are enforced by the service.
func (r *CreateConsignmentRequest) Validate() error {
	r.Receiver = strings.TrimSpace(r.Receiver)
	if r.Receiver == "" {
		return dErrors.New(dErrors.CodeValidation, "receiver is required")
	}
	category, err := models.ParseGoodsCategory(r.GoodsCategory)
	if err != nil {
		return err
	}
	unit, err := models.ParseUnit(r.Unit)
	if err != nil {
		return err
	}
	if !r.Quantity.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "quantity must be greater than zero")
	}
	r.category, r.unit = category, unit
	return nil
}

func (r *CreateConsignmentRequest) ParsedCategory() models.GoodsCategory {
	return r.category
}

// ToModel builds the service request with sender as consignor.
func (r *CreateConsignmentRequest) ToModel(sender id.PartyID) *models.CreateRequest {
	return &models.CreateRequest{
		Sender:        sender,
		Receiver:      id.PartyID(r.Receiver),
		GoodsCategory: r.category,
		Quantity:      r.Quantity,
		Unit:          r.unit,
	}
}
