// Package domain models fire-detection queries and the reproducible hashing
// that turns a query into a synthetic detection count.
//
// # Query Parameters
//
// A query is a bounding box plus an acquisition window, a satellite name and a
// cloud-cover ceiling:
//
//	bounds          [min_lon, min_lat, max_lon, max_lat], WGS-84 degrees
//	start_date      "YYYY-MM-DD"
//	end_date        "YYYY-MM-DD", never before start_date
//	satellite       open enumeration: "sentinel2", "landsat", "modis", "viirs", ...
//	max_cloud_cover integer percentage 0-100
//
// # Canonical String
//
// The seed input is the fields joined by underscores in fixed order:
//
//	[-122.5, 37.5, -122.0, 38.0]_2024-08-01_2024-08-07_sentinel2_40
//
// Floats use [FormatFloat]: the shortest representation that round-trips,
// laid out in fixed notation when the decimal exponent is in [-4, 16) and
// always carrying a fractional digit ("38.0"), otherwise in scientific
// notation with a signed two-digit exponent ("1e-09"). Changing the layout,
// the separators or the field order changes every seed.
//
// # Rolling Hash
//
// Strings fold into 32 bits one code point at a time:
//
//	acc = (acc<<5 + acc + codepoint) & 0xFFFFFFFF
//
// The arithmetic is done on uint32 so the result is identical on every
// platform and in every process. Nothing here uses a runtime-seeded hash.
//
// # Detection Count
//
// The bounding-box area in square degrees is formatted, hashed and reduced
// modulo 1000. Adding seed mod 1000 and reducing again gives the combined
// value, which maps onto a count through half-open buckets of width 200:
//
//	[0,200) 0 | [200,400) 1 | [400,600) 2 | [600,800) 3 | [800,1000) 4
package domain
