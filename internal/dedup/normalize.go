package dedup

import (
	"strconv"

	"github.com/shopspring/decimal"
)

var trustLevels = map[string]int{
	"bronze":   1,
	"silver":   2,
	"gold":     3,
	"platinum": 4,
}

func trustLevel(s string) int {
	return trustLevels[s] // zero value for anything else
}

// toIntString parses a feed boolean/int encoded as a string ("0"/"1", or
// any other decimal string). Missing or unparseable fields become 0.
func toIntString(v interface{}) int {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func toFloat(v interface{}) float64 {
	switch x := v.(type) {
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0
		}
		return f
	case float64:
		return x
	default:
		return 0
	}
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// scaleCents converts a decimal string price/volume to integer cents.
// shopspring/decimal is used so the scaling is exact rather than
// float-drift-prone.
func scaleCents(v interface{}) int {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return int(d.Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}

// normalizeAdd implements the add stream's normalization schema. Every
// output field is always present.
func normalizeAdd(data map[string]interface{}) map[string]interface{} {
	isShorting := toIntString(data["is_shorting"])
	isShortingAllowed := toIntString(data["is_shorting_allowed"])

	return map[string]interface{}{
		"id":                                   toString(data["id"]),
		"uid":                                  toString(data["uid"]),
		"order_id":                             toString(data["order_id"]),
		"price":                                scaleCents(data["price"]),
		"volume":                               scaleCents(data["volume"]),
		"amount":                               toFloat(data["amount"]),
		"min_amount":                           toFloat(data["min_amount"]),
		"trading_pair":                         toString(data["trading_pair"]),
		"order_type":                           toString(data["order_type"]),
		"order":                                toString(data["order"]),
		"bic_full":                             toString(data["bic_full"]),
		"seat_of_bank_of_creator":              toString(data["seat_of_bank_of_creator"]),
		"trade_to_sepa_country":                toString(data["trade_to_sepa_country"]),
		"only_kyc_full":                        toIntString(data["only_kyc_full"]),
		"is_kyc_full":                          toIntString(data["is_kyc_full"]),
		"fidor_account":                        toIntString(data["fidor_account"]),
		"is_trade_by_sepa_allowed":             toIntString(data["is_trade_by_sepa_allowed"]),
		"is_trade_by_fidor_reservation_allowed": toIntString(data["is_trade_by_fidor_reservation_allowed"]),
		"min_trust_level":                      trustLevel(toString(data["min_trust_level"])),
		"po":                                    toIntString(data["payment_option"]),
		"short":                                isShorting*2 + isShortingAllowed,
	}
}

// fidorFlagFromEntry reads the fidor reservation flag for a po
// sub-mapping.
func fidorFlagFromEntry(v map[string]interface{}) int {
	return toIntString(v["is_trade_by_fidor_reservation_allowed"])
}

// sepaFlagFromEntry reads the SEPA-allowed flag for a po sub-mapping.
// The key is read literally as "u'is_trade_by_sepa_allowed" — a
// transcription bug in the upstream feed preserved verbatim, pending
// upstream confirmation before correcting it.
func sepaFlagFromEntry(v map[string]interface{}) int {
	return toIntString(v["u'is_trade_by_sepa_allowed"])
}

// normalizePoEntries builds the { id, po } record for every entry in the
// po payload, where po = fidor + sepa*2.
func normalizePoEntries(entries []orderedEntry) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		fidor := fidorFlagFromEntry(e.value)
		sepa := sepaFlagFromEntry(e.value)
		out = append(out, map[string]interface{}{
			"id": e.key,
			"po": fidor + sepa*2,
		})
	}
	return out
}
