package normalize

import "fmt"

// Bucket is one interval of a day-count bucketing, inclusive on the upper
// bound.
type Bucket struct {
	UpperDays int64
	Label     string
}

// DefaultBuckets is the purchase-delay bucketing used by the built-in
// reports. Values above the last bound fall into the catch-all label.
var DefaultBuckets = []Bucket{
	{7, "0-7 days"},
	{14, "8-14 days"},
	{30, "15-30 days"},
	{60, "31-60 days"},
	{90, "61-90 days"},
}

// Bucketize maps a day count to its bucket label. Bounds are inclusive on
// the upper end; anything past the last bound gets ">N days".
func Bucketize(days int64, buckets []Bucket) string {
	for _, b := range buckets {
		if days <= b.UpperDays {
			return b.Label
		}
	}
	if len(buckets) == 0 {
		return fmt.Sprintf("%d days", days)
	}
	return fmt.Sprintf(">%d days", buckets[len(buckets)-1].UpperDays)
}
