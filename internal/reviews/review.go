// Package reviews merges product reviews from the ratings service with
// records kept in the local cache, and keeps the rating summary consistent
// with the merged set.
package reviews

import (
	"math"
	"strings"
	"time"

	"github.com/tayloree/shopcli/internal/api"
	"github.com/tayloree/shopcli/internal/filter"
)

// State is the lifecycle of one review record.
type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateLocalOnly State = "local-only"
)

// duplicateWindow is how far apart a local and a remote record with the same
// rating and comment may be and still count as the same review.
const duplicateWindow = 60 * time.Second

// Review is one rating with optional comment.
type Review struct {
	ID          string    `json:"id"`
	AuthorLabel string    `json:"authorLabel"`
	Rating      int       `json:"rating"`
	Comment     *string   `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	State       State     `json:"state"`
	IsLocalOnly bool      `json:"isLocalOnly"`
}

func fromAPI(r api.Review) Review {
	author := strings.TrimSpace(r.Author)
	if author == "" {
		author = "Anonymous"
	}
	return Review{
		ID:          string(r.ID),
		AuthorLabel: author,
		Rating:      r.Rating,
		Comment:     r.Comment,
		CreatedAt:   r.CreatedAt,
		State:       StateConfirmed,
	}
}

func fromAPIList(in []api.Review) []Review {
	out := make([]Review, 0, len(in))
	for _, r := range in {
		out = append(out, fromAPI(r))
	}
	return out
}

// Summary is the aggregate of a review set.
type Summary struct {
	AverageRating float64     `json:"averageRating"`
	TotalRatings  int         `json:"totalRatings"`
	Distribution  map[int]int `json:"distribution"`
}

func emptyDistribution() map[int]int {
	return map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}
}

func summaryFromAPI(s *api.RatingSummary) Summary {
	out := Summary{
		AverageRating: s.AverageRating,
		TotalRatings:  s.TotalRatings,
		Distribution:  emptyDistribution(),
	}
	for k, v := range s.Distribution {
		out.Distribution[k] = v
	}
	return out
}

// Summarize aggregates reviews.
func Summarize(reviews []Review) Summary {
	s := Summary{Distribution: emptyDistribution()}
	for _, r := range reviews {
		s.Add(r.Rating)
	}
	return s
}

// Add folds one rating into the summary incrementally.
func (s *Summary) Add(rating int) {
	if s.Distribution == nil {
		s.Distribution = emptyDistribution()
	}
	n := float64(s.TotalRatings)
	s.AverageRating = (s.AverageRating*n + float64(rating)) / (n + 1)
	s.TotalRatings++
	s.Distribution[rating]++
}

// RoundedAverage is the average rounded to one decimal.
func (s Summary) RoundedAverage() float64 {
	return math.Round(s.AverageRating*10) / 10
}

// consistentWith reports whether s can stand for a set of n reviews.
func (s Summary) consistentWith(n int) bool {
	if s.TotalRatings != n {
		return false
	}
	sum := 0
	for _, c := range s.Distribution {
		sum += c
	}
	return sum == s.TotalRatings
}

func (s Summary) clone() Summary {
	out := s
	out.Distribution = make(map[int]int, len(s.Distribution))
	for k, v := range s.Distribution {
		out.Distribution[k] = v
	}
	return out
}

// Merge combines remote records with local ones. A local record that
// duplicates a remote one is dropped; the remaining local records come first,
// followed by the remote list in its original order.
func Merge(remote, local []Review) []Review {
	out := make([]Review, 0, len(remote)+len(local))
	for _, l := range local {
		dup := false
		for _, r := range remote {
			if isDuplicate(l, r) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, l)
		}
	}
	return append(out, remote...)
}

func isDuplicate(local, remote Review) bool {
	if local.ID != "" && local.ID == remote.ID {
		return true
	}
	if local.Rating != remote.Rating {
		return false
	}
	if strings.TrimSpace(filter.Deref(local.Comment)) != strings.TrimSpace(filter.Deref(remote.Comment)) {
		return false
	}
	gap := local.CreatedAt.Sub(remote.CreatedAt)
	if gap < 0 {
		gap = -gap
	}
	return gap <= duplicateWindow
}
