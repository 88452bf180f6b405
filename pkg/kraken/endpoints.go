package kraken

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// BaseURL is the public REST endpoint
	BaseURL = "https://api.kraken.com"

	// TradesEndpoint returns recent trades for a pair since a nanosecond cursor
	TradesEndpoint = "/0/public/Trades"
)

// TradesURL constructs the URL for fetching trades after cursor.
func TradesURL(baseURL, pair string, cursor int64) string {
	params := url.Values{}
	params.Set("pair", pair)
	params.Set("since", strconv.FormatInt(cursor, 10))

	return fmt.Sprintf("%s%s?%s", strings.TrimRight(baseURL, "/"), TradesEndpoint, params.Encode())
}
