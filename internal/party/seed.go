package party

import (
	"context"

	"emcs/internal/consignment/models"
	id "emcs/pkg/domain"
)

// Development operators registered by SeedDevelopment.
var (
	BordeauxWarehouse = id.MustParsePartyID("0x" + "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90")
	HamburgImporter   = id.MustParsePartyID("0x" + "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0")
	DublinDistillery  = id.MustParsePartyID("0x" + "5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e")
)

// SeedDevelopment registers a small set of operators for local runs.
func SeedDevelopment(d *Directory) {
	ctx := context.Background()
	_ = d.Register(ctx, PartyInfo{
		Address:              BordeauxWarehouse,
		Name:                 "Entrepôt Bordeaux SA",
		ExciseNumber:         "FR00001234567",
		Country:              "FR",
		AuthorizedCategories: []models.GoodsCategory{models.CategoryWine, models.CategorySpirits, models.CategoryIntermediateProducts},
	})
	_ = d.Register(ctx, PartyInfo{
		Address:              HamburgImporter,
		Name:                 "Hamburg Getränke GmbH",
		ExciseNumber:         "DE00009876543",
		Country:              "DE",
		AuthorizedCategories: []models.GoodsCategory{models.CategoryWine, models.CategoryBeer},
	})
	_ = d.Register(ctx, PartyInfo{
		Address:              DublinDistillery,
		Name:                 "Liffey Distillers Ltd",
		ExciseNumber:         "IE00004567890",
		Country:              "IE",
		AuthorizedCategories: []models.GoodsCategory{models.CategorySpirits},
	})
}
