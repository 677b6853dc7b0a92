// Package catalog loads voucher catalogs from external sources and
// normalizes the payload shapes they use into []voucher.Voucher.
package catalog

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/techstore/internal/domain/voucher"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Decode parses a catalog response. It accepts a bare array of vouchers or an
// envelope object carrying the array under "data", "vouchers" or "items".
// An envelope with "success": false yields voucher.ErrCatalogUnavailable.
func Decode(data []byte) ([]voucher.Voucher, error) {
	d := jx.DecodeBytes(data)

	switch d.Next() {
	case jx.Array:
		return decodeList(d)
	case jx.Object:
		return decodeEnvelope(d)
	default:
		return nil, errors.Errorf("unexpected catalog payload: %s", d.Next())
	}
}

func decodeEnvelope(d *jx.Decoder) ([]voucher.Voucher, error) {
	var (
		list    []voucher.Voucher
		found   bool
		success = true
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "success":
			if d.Next() != jx.Bool {
				return d.Skip()
			}
			v, err := d.Bool()
			success = v
			return err
		case "data", "vouchers", "items":
			if d.Next() != jx.Array {
				return d.Skip()
			}
			items, err := decodeList(d)
			if err != nil {
				return errors.Wrapf(err, "decode %q", key)
			}
			list, found = items, true
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode envelope")
	}
	if !success {
		return nil, voucher.ErrCatalogUnavailable
	}
	if !found {
		return nil, errors.New("catalog envelope has no voucher list")
	}
	return list, nil
}

func decodeList(d *jx.Decoder) ([]voucher.Voucher, error) {
	list := make([]voucher.Voucher, 0)
	err := d.Arr(func(d *jx.Decoder) error {
		v, err := DecodeVoucher(d)
		if err != nil {
			return errors.Wrapf(err, "voucher #%d", len(list))
		}
		list = append(list, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// DecodeOne parses a single voucher object.
func DecodeOne(data []byte) (voucher.Voucher, error) {
	return DecodeVoucher(jx.DecodeBytes(data))
}

// DecodeVoucher reads one voucher object from d. Field names follow the
// storefront API with the legacy aliases it accumulated (expiryDate for
// endDate, active for isActive, used for usedCount).
func DecodeVoucher(d *jx.Decoder) (voucher.Voucher, error) {
	v := voucher.Voucher{IsActive: true}
	var typ string

	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			var code string
			code, err = d.Str()
			v.Code = voucher.CanonicalCode(code)
		case "description":
			v.Description, err = readString(d)
		case "discountType", "type":
			typ, err = d.Str()
		case "discountValue", "value":
			v.DiscountValue, err = readDecimal(d)
		case "maxDiscount", "maxDiscountAmount":
			v.MaxDiscount, err = readDecimal(d)
		case "minOrderValue", "minOrder":
			v.MinOrderValue, err = readDecimal(d)
		case "startDate":
			var t time.Time
			t, err = readTime(d)
			if err == nil && !t.IsZero() {
				v.StartDate = &t
			}
		case "endDate", "expiryDate":
			v.EndDate, err = readTime(d)
		case "usageLimit":
			v.UsageLimit, err = readInt(d)
		case "usedCount", "used":
			v.UsedCount, err = readInt(d)
		case "isActive", "active":
			v.IsActive, err = d.Bool()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return voucher.Voucher{}, err
	}

	if v.Code == "" {
		return voucher.Voucher{}, errors.New("missing code")
	}
	v.DiscountType, err = voucher.ParseDiscountType(typ)
	if err != nil {
		return voucher.Voucher{}, errors.Wrapf(err, "voucher %s", v.Code)
	}
	return v, nil
}

func readString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// readDecimal accepts JSON numbers, numeric strings, null and the extended
// JSON number wrappers ({"$numberDecimal": "1.5"}).
func readDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Object:
		var (
			v   decimal.Decimal
			err error
		)
		objErr := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "$numberDecimal", "$numberDouble", "$numberLong", "$numberInt":
				v, err = readDecimal(d)
				return err
			default:
				return d.Skip()
			}
		})
		if objErr != nil {
			return decimal.Zero, objErr
		}
		return v, nil
	case jx.Null:
		return decimal.Zero, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		if s == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(string(n))
	default:
		return decimal.Zero, errors.Errorf("expected number, got %s", d.Next())
	}
}

// readInt accepts the same encodings as readDecimal as long as the value
// is integral, so doubles such as 100.0 from document stores decode.
func readInt(d *jx.Decoder) (int, error) {
	n, err := readDecimal(d)
	if err != nil {
		return 0, err
	}
	if !n.IsInteger() {
		return 0, errors.Errorf("expected integer, got %s", n)
	}
	return int(n.IntPart()), nil
}

// readTime accepts date strings, unix milliseconds and Mongo extended JSON
// ({"$date": ...}).
func readTime(d *jx.Decoder) (time.Time, error) {
	switch d.Next() {
	case jx.Null:
		return time.Time{}, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return time.Time{}, err
		}
		return parseTime(s)
	case jx.Number:
		ms, err := readInt(d)
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(int64(ms)).UTC(), nil
	case jx.Object:
		var t time.Time
		err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "$date":
				var err error
				t, err = readTime(d)
				return err
			case "$numberLong":
				ms, err := readInt(d)
				t = time.UnixMilli(int64(ms)).UTC()
				return err
			default:
				return d.Skip()
			}
		})
		return t, err
	default:
		return time.Time{}, errors.Errorf("expected date, got %s", d.Next())
	}
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized date %q", s)
}
