package domain

import (
	"crypto/rand"
	"fmt"
	"io"
	"math"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"
)

type ServiceType struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Kind       ServiceKind `json:"kind"`
	PricePerKg int64       `json:"pricePerKg"`
	Active     bool        `json:"active"`
}

type ItemType struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Price  int64  `json:"price"`
	Active bool   `json:"active"`
}

// ItemDetail is one line of the payment gateway item_details array.
type ItemDetail struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

const (
	orderNumberPrefix = "LDR"
	base36            = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var randReader io.Reader = rand.Reader

// NewOrderNumber returns LDR<YYYYMMDD><4 random base36 chars>.
func NewOrderNumber(now time.Time) (string, error) {
	var sb strings.Builder
	sb.WriteString(orderNumberPrefix)
	sb.WriteString(now.Format("20060102"))
	limit := big.NewInt(int64(len(base36)))
	for i := 0; i < 4; i++ {
		n, err := rand.Int(randReader, limit)
		if err != nil {
			return "", fmt.Errorf("order number: %w", err)
		}
		sb.WriteByte(base36[n.Int64()])
	}
	return sb.String(), nil
}

// WeightPrice prices a kiloan order; weight is billed in whole rupiah, rounded half up.
func WeightPrice(pricePerKg int64, weightKg float64) int64 {
	return int64(math.Round(float64(pricePerKg) * weightKg))
}

// ItemDetails builds the gateway line items for an order. Their sum equals TotalPrice
// whenever TotalPrice is ServicePrice plus both fees.
func (o *Order) ItemDetails() []ItemDetail {
	var out []ItemDetail
	switch o.ServiceKind {
	case ServiceSatuan:
		for _, it := range o.Items {
			name := it.ItemTypeName
			if name == "" {
				name = "Item " + it.ItemTypeID
			}
			out = append(out, ItemDetail{
				ID:       it.ItemTypeID,
				Name:     truncate(name, 50),
				Price:    it.PricePerItem,
				Quantity: it.Quantity,
			})
		}
	default:
		name := o.ServiceTypeName
		if name == "" {
			name = "Laundry kiloan"
		}
		out = append(out, ItemDetail{
			ID:       o.ServiceTypeID,
			Name:     truncate(fmt.Sprintf("%s %.1f kg", name, o.WeightKg), 50),
			Price:    o.ServicePrice,
			Quantity: 1,
		})
	}
	if o.PickupFee > 0 {
		out = append(out, ItemDetail{ID: "pickup_fee", Name: "Biaya penjemputan", Price: o.PickupFee, Quantity: 1})
	}
	if o.DeliveryFee > 0 {
		out = append(out, ItemDetail{ID: "delivery_fee", Name: "Biaya pengantaran", Price: o.DeliveryFee, Quantity: 1})
	}
	return out
}

func SumItemDetails(details []ItemDetail) int64 {
	var sum int64
	for _, d := range details {
		sum += d.Price * int64(d.Quantity)
	}
	return sum
}

// CheckGrossAmount enforces that item_details add up exactly to the charged amount.
func CheckGrossAmount(details []ItemDetail, gross int64) error {
	if len(details) == 0 {
		return fmt.Errorf("item details empty")
	}
	if sum := SumItemDetails(details); sum != gross {
		return fmt.Errorf("item details sum %d does not match gross amount %d", sum, gross)
	}
	return nil
}

// truncate keeps at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
