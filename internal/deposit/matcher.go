package deposit

import (
	"encoding/base64"
	"strings"
	"time"

	"stars-engine/internal/chain"
)

// commentMatches compares the trimmed comment with the code, then retries
// with the comment decoded from base64.
func commentMatches(comment, code string) bool {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return false
	}
	if comment == code {
		return true
	}
	if len(comment)%4 != 0 {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(comment)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(raw)) == code
}

// inWindow reports whether the transfer time lies within the code's
// lifetime. Chain times have second precision, so the lower bound is
// truncated.
func inWindow(p PendingPayment, at time.Time) bool {
	if at.Before(p.CreatedAt.Truncate(time.Second)) {
		return false
	}
	return !at.After(p.ExpiresAt)
}

func matches(p PendingPayment, tr chain.Transfer) bool {
	return inWindow(p, tr.Time) && commentMatches(tr.Comment, p.Code)
}
