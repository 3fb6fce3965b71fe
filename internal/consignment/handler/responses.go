package handler

import (
	"emcs/internal/consignment/models"
	"emcs/internal/party"
	id "emcs/pkg/domain"
)

// ConsignmentResponse is a consignment with its parties resolved.
type ConsignmentResponse struct {
	*models.Consignment
	Parties map[id.PartyID]*party.PartyInfo `json:"parties,omitempty"`
}

type EventsResponse struct {
	Reference string                  `json:"reference"`
	Events    []*models.MovementEvent `json:"events"`
}

type VerifyResponse struct {
	Reference    string `json:"reference"`
	DocumentHash string `json:"document_hash,omitempty"`
	Valid        bool   `json:"valid"`
}

type ListResponse struct {
	Party        id.PartyID            `json:"party"`
	Consignments []*models.Consignment `json:"consignments"`
}
