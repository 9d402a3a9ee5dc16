package web

import (
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
)

// TweetDateLayout is how a tweet card shows its timestamp.
const TweetDateLayout = "3:04 PM · Jan 2, 2006"

// Profile is the account a generated tweet is attributed to.
type Profile struct {
	DisplayName string
	Handle      string
	Verified    bool
	Client      string
}

// Tweet is a generated text dressed up as a tweet card.
type Tweet struct {
	DisplayName string `json:"display_name"`
	Handle      string `json:"handle"`
	Verified    bool   `json:"verified"`
	Text        string `json:"text"`
	Date        string `json:"date"`
	Client      string `json:"client"`
	Retweets    uint64 `json:"retweets"`
	Quotes      uint64 `json:"quotes"`
	Likes       uint64 `json:"likes"`
}

// NewTweet builds the card for text. The counters are derived from a hash of
// the text, so the same text always gets the same numbers.
func NewTweet(text string, profile Profile, now time.Time) Tweet {
	h := xxhash.Sum64String(text)
	retweets := 1000 + h%40000
	quotes := 50 + (h>>16)%5000
	likes := 2*retweets + (h>>32)%90000

	return Tweet{
		DisplayName: profile.DisplayName,
		Handle:      strings.TrimPrefix(profile.Handle, "@"),
		Verified:    profile.Verified,
		Text:        text,
		Date:        now.Format(TweetDateLayout),
		Client:      profile.Client,
		Retweets:    retweets,
		Quotes:      quotes,
		Likes:       likes,
	}
}

// CompactCount formats n the way tweet counters do: 950, 12.7K, 1.2M.
func CompactCount(n uint64) string {
	s := humanize.SIWithDigits(float64(n), 1, "")
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.Replace(s, ".0", "", 1)
	return strings.ToUpper(s)
}

// FullCount formats n with thousands separators.
func FullCount(n uint64) string {
	return humanize.Comma(int64(n))
}
