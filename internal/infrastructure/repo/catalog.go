package repo

import (
	"errors"

	"laundry-backend/internal/domain"
)

var ErrNoOrder = errors.New("order does not exist")

// DefaultServiceTypes seeds an empty catalog.
func DefaultServiceTypes() []domain.ServiceType {
	return []domain.ServiceType{
		{ID: "cuci-kering", Name: "Cuci Kering", Kind: domain.ServiceKiloan, PricePerKg: 7000, Active: true},
		{ID: "cuci-setrika", Name: "Cuci Setrika", Kind: domain.ServiceKiloan, PricePerKg: 10000, Active: true},
		{ID: "satuan", Name: "Laundry Satuan", Kind: domain.ServiceSatuan, Active: true},
	}
}

func DefaultItemTypes() []domain.ItemType {
	return []domain.ItemType{
		{ID: "kemeja", Name: "Kemeja", Price: 8000, Active: true},
		{ID: "celana", Name: "Celana", Price: 8000, Active: true},
		{ID: "jas", Name: "Jas", Price: 25000, Active: true},
		{ID: "bed-cover", Name: "Bed Cover", Price: 35000, Active: true},
		{ID: "selimut", Name: "Selimut", Price: 20000, Active: true},
	}
}
