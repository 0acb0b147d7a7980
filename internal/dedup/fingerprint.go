package dedup

import (
	"fmt"
	"strconv"
)

// fingerprintAddRm returns data.id as both the cache key and the
// delivered event id — the feed's own string, not reparsed to int.
func fingerprintAddRm(data map[string]interface{}) (key string, id interface{}, err error) {
	id, ok := data["id"]
	if !ok {
		return "", nil, fmt.Errorf("dedup: add/rm payload missing id")
	}
	return toString(id), toString(id), nil
}

// fingerprintSknSpr returns data.uid as both the cache key and the
// delivered event id.
func fingerprintSknSpr(data map[string]interface{}) (key string, id interface{}, err error) {
	id, ok := data["uid"]
	if !ok {
		return "", nil, fmt.Errorf("dedup: skn/spr payload missing uid")
	}
	return toString(id), toString(id), nil
}

// fingerprintPo computes an order-dependent weighted sum: sum over (k, v)
// in entries, with j incrementing from 1, of int(k) * (2*fidor_flag(v) -
// 1) * j. Iteration order follows the payload's wire order, not sorted —
// this is intentionally not commutative.
func fingerprintPo(entries []orderedEntry) (key string, id interface{}, err error) {
	sum := 0
	for j, e := range entries {
		idNum, err := strconv.Atoi(e.key)
		if err != nil {
			return "", nil, fmt.Errorf("dedup: po entry key %q is not numeric: %w", e.key, err)
		}
		fidor := fidorFlagFromEntry(e.value)
		sum += idNum * (2*fidor - 1) * (j + 1)
	}
	return strconv.Itoa(sum), sum, nil
}
