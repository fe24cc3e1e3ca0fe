package cart

import (
	"math"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// DocumentVersion is the version written into persisted cart documents.
const DocumentVersion = 0

// Document is the persisted cart layout:
//
//	{"state":{"items":[...],"voucherCode":"...","voucherDiscount":0},"version":0}
type Document struct {
	State   State
	Version int
}

// MarshalDocument encodes state into the persisted layout.
func MarshalDocument(state State) []byte {
	var e jx.Encoder
	Document{State: state, Version: DocumentVersion}.Encode(&e)
	return e.Bytes()
}

// UnmarshalDocument decodes a persisted cart layout. Unknown fields are
// skipped and items violating the cart invariants are dropped or clamped.
func UnmarshalDocument(data []byte) (Document, error) {
	var doc Document
	if err := doc.Decode(jx.DecodeBytes(data)); err != nil {
		return Document{}, errors.Wrap(err, "decode cart document")
	}
	if doc.Version > DocumentVersion {
		return Document{}, errors.Errorf("unsupported cart document version %d", doc.Version)
	}
	doc.State = normalize(doc.State)
	return doc, nil
}

// Encode writes the document as JSON.
func (doc Document) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("state")
	encodeState(e, doc.State)
	e.FieldStart("version")
	e.Int(doc.Version)
	e.ObjEnd()
}

// Decode reads the document from d.
func (doc *Document) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "state":
			return decodeState(d, &doc.State)
		case "version":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "version")
			}
			doc.Version = v
			return nil
		default:
			return d.Skip()
		}
	})
}

func encodeState(e *jx.Encoder, s State) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range s.Items {
		EncodeLineItem(e, item)
	}
	e.ArrEnd()
	e.FieldStart("voucherCode")
	if s.VoucherCode == "" {
		e.Null()
	} else {
		e.Str(s.VoucherCode)
	}
	e.FieldStart("voucherDiscount")
	EncodeAmount(e, s.VoucherDiscount)
	e.ObjEnd()
}

// EncodeLineItem writes a line item. Optional variant fields are omitted
// when empty.
func EncodeLineItem(e *jx.Encoder, item LineItem) {
	e.ObjStart()
	e.FieldStart("productId")
	e.Str(item.ProductID)
	if item.VariantID != "" {
		e.FieldStart("variantId")
		e.Str(item.VariantID)
	}
	e.FieldStart("name")
	e.Str(item.Name)
	if item.VariantName != "" {
		e.FieldStart("variantName")
		e.Str(item.VariantName)
	}
	e.FieldStart("unitPrice")
	EncodeAmount(e, item.UnitPrice)
	e.FieldStart("quantity")
	e.Int(item.Quantity)
	e.FieldStart("maxQuantity")
	e.Int(item.MaxQuantity)
	e.FieldStart("image")
	e.Str(item.Image)
	e.ObjEnd()
}

func decodeState(d *jx.Decoder, s *State) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				var item LineItem
				if err := decodeLineItem(d, &item); err != nil {
					return err
				}
				s.Items = append(s.Items, item)
				return nil
			})
		case "voucherCode":
			code, err := decodeOptString(d)
			if err != nil {
				return errors.Wrap(err, "voucherCode")
			}
			s.VoucherCode = code
			return nil
		case "voucherDiscount":
			v, err := DecodeAmount(d)
			if err != nil {
				return errors.Wrap(err, "voucherDiscount")
			}
			s.VoucherDiscount = v
			return nil
		default:
			return d.Skip()
		}
	})
}

func decodeLineItem(d *jx.Decoder, item *LineItem) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			item.ProductID, err = d.Str()
		case "variantId":
			item.VariantID, err = decodeOptString(d)
		case "name":
			item.Name, err = d.Str()
		case "variantName":
			item.VariantName, err = decodeOptString(d)
		case "unitPrice":
			item.UnitPrice, err = DecodeAmount(d)
		case "quantity":
			item.Quantity, err = d.Int()
		case "maxQuantity":
			item.MaxQuantity, err = d.Int()
		case "image":
			item.Image, err = decodeOptString(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

func decodeOptString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// EncodeAmount writes a VND amount as a JSON integer.
func EncodeAmount(e *jx.Encoder, v decimal.Decimal) {
	e.Int64(v.Round(0).IntPart())
}

// DecodeAmount reads a VND amount written as a JSON number or numeric
// string. Null reads as zero. Amounts outside the int64 range are rejected.
func DecodeAmount(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.Null:
		return zero(), d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	}

	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse amount %q", raw)
	}
	v = v.Round(0)
	if v.GreaterThan(maxAmount) || v.LessThan(minAmount) {
		return decimal.Decimal{}, errors.Errorf("amount %s out of range", raw)
	}
	return decimal.NewFromInt(v.IntPart()), nil
}

var (
	maxAmount = decimal.NewFromInt(math.MaxInt64)
	minAmount = decimal.NewFromInt(math.MinInt64)
)
