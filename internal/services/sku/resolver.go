// Package sku maps raw scanned codes to canonical item-type codes.
package sku

import (
	"strings"

	"scandesk/internal/domain"
	"scandesk/internal/services/validation"
)

const (
	ItemSticker domain.ItemCode = "SK-001"
	ItemBlackIC domain.ItemCode = "IC-001"
	ItemBlueIC  domain.ItemCode = "IC-002"
	ItemRedIC   domain.ItemCode = "IC-004"
	ItemDevice  domain.ItemCode = "DE-001"
)

const serialLength = 15

// voidCode is the reserved sticker value printed on spoiled labels; it
// never resolves.
const voidCode = "9999"

type rule struct {
	length int
	prefix string
	digits bool
	item   domain.ItemCode
}

func (r rule) match(code string) bool {
	if len(code) != r.length {
		return false
	}
	if r.digits && !validation.AllDigits(code) {
		return false
	}
	return strings.HasPrefix(code, r.prefix)
}

// Evaluated in order; first match wins.
var rules = []rule{
	{length: 4, digits: true, item: ItemSticker},
	{length: 20, prefix: "6641", item: ItemBlackIC},
	{length: 19, prefix: "6601", item: ItemBlueIC},
	{length: 20, prefix: "6601", item: ItemRedIC},
}

// Resolve returns the item code for a primary scanned code.
func Resolve(code string) (domain.ItemCode, bool) {
	if code == voidCode {
		return "", false
	}
	for _, r := range rules {
		if r.match(code) {
			return r.item, true
		}
	}
	return "", false
}

// ResolveSerial returns DE-001 for a 15-digit device serial.
func ResolveSerial(serial string) (domain.ItemCode, bool) {
	if len(serial) == serialLength && validation.AllDigits(serial) {
		return ItemDevice, true
	}
	return "", false
}
