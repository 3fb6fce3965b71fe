package models

import (
	"strings"

	dErrors "emcs/pkg/domain-errors"
)

// Status is the legal status of a consignment.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusInTransit Status = "in_transit"
	StatusReceived  Status = "received"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusInTransit, StatusReceived:
		return true
	}
	return false
}

// CanTransitionTo allows draft -> in_transit -> received only.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusDraft:
		return target == StatusInTransit
	case StatusInTransit:
		return target == StatusReceived
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// GoodsCategory is the excise category of the goods moved.
type GoodsCategory string

const (
	CategoryWine                 GoodsCategory = "Wine"
	CategoryBeer                 GoodsCategory = "Beer"
	CategorySpirits              GoodsCategory = "Spirits"
	CategoryTobacco              GoodsCategory = "Tobacco"
	CategoryEnergyProducts       GoodsCategory = "Energy Products"
	CategoryIntermediateProducts GoodsCategory = "Intermediate Products"
)

var goodsCategories = []GoodsCategory{
	CategoryWine,
	CategoryBeer,
	CategorySpirits,
	CategoryTobacco,
	CategoryEnergyProducts,
	CategoryIntermediateProducts,
}

// GoodsCategories lists every accepted category.
func GoodsCategories() []GoodsCategory {
	return append([]GoodsCategory(nil), goodsCategories...)
}

func (g GoodsCategory) IsValid() bool {
	for _, c := range goodsCategories {
		if c == g {
			return true
		}
	}
	return false
}

// ParseGoodsCategory matches case-insensitively and returns the canonical form.
func ParseGoodsCategory(s string) (GoodsCategory, error) {
	s = strings.TrimSpace(s)
	for _, c := range goodsCategories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "unknown goods category %q", s)
}

// Unit is the unit of measure for a quantity.
type Unit string

const (
	UnitLiters      Unit = "Liters"
	UnitKilograms   Unit = "Kilograms"
	UnitUnits       Unit = "Units"
	UnitHectoliters Unit = "Hectoliters"
)

var units = []Unit{UnitLiters, UnitKilograms, UnitUnits, UnitHectoliters}

func (u Unit) IsValid() bool {
	for _, v := range units {
		if v == u {
			return true
		}
	}
	return false
}

// ParseUnit matches case-insensitively and returns the canonical form.
func ParseUnit(s string) (Unit, error) {
	s = strings.TrimSpace(s)
	for _, u := range units {
		if strings.EqualFold(string(u), s) {
			return u, nil
		}
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "unknown unit %q", s)
}
