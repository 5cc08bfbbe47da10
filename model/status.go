// Package model holds the items filters are evaluated against.
package model

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/net/html"
)

type (
	// User is the author of a status.
	User struct {
		ID                    int64
		ScreenName            string
		Name                  string
		Location              string // empty means not set
		IsProtected           bool
		IsVerified            bool
		IsTranslator          bool
		IsContributorsEnabled bool
		IsGeoEnabled          bool
	}

	// Status is a single timeline item. A retweet carries the retweeting
	// user in User and the original status in RetweetedStatus.
	Status struct {
		ID                int64
		User              *User
		Text              string
		Source            string // html anchor of the posting client, or plain text
		CreatedAt         time.Time
		InReplyToStatusID int64 // 0 if not a reply
		RetweetedStatus   *Status

		// user ids, recorded on the original status
		FavoritedUsers []int64
		RetweetedUsers []int64
		MentionedUsers []int64
	}
)

var (
	ErrNilStatus = errors.New("model: nil status")
	// ErrNoUser is returned for a status, or the status it retweets, without
	// a user. Accessors assume every status has one.
	ErrNoUser = errors.New("model: status has no user")
)

// Validate checks s and its retweeted original carry what accessors read.
func (s *Status) Validate() error {
	if s == nil {
		return ErrNilStatus
	}
	if s.User == nil {
		return fmt.Errorf("%w: status %d", ErrNoUser, s.ID)
	}
	if s.RetweetedStatus != nil {
		return s.RetweetedStatus.Validate()
	}
	return nil
}

// Original returns the retweeted status for retweets, else the status itself.
func (s *Status) Original() *Status {
	if s.RetweetedStatus != nil {
		return s.RetweetedStatus
	}
	return s
}

func (s *Status) IsRetweet() bool { return s.RetweetedStatus != nil }

// Retweeter returns the retweeting user, or nil if this is not a retweet.
func (s *Status) Retweeter() *User {
	if s.RetweetedStatus == nil {
		return nil
	}
	return s.User
}

// ClientName is the text of the Source attribute with any markup removed,
// ie `<a href="https://example.com">Krile</a>` => "Krile"
func (s *Status) ClientName() string {
	return ClientName(s.Source)
}

// ClientName extracts the visible text from an html source attribute.
func ClientName(source string) string {
	if !strings.Contains(source, "<") {
		return strings.TrimSpace(source)
	}
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(source))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return strings.TrimSpace(source)
			}
			return strings.TrimSpace(sb.String())
		case html.TextToken:
			sb.Write(z.Text())
		}
	}
}
