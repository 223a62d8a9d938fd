package sendmatchdigest

import (
	"opportunity-matcher/internal/matching"
	"opportunity-matcher/internal/notify"
)

// Input reuses the output of match-opportunities, so a process can match
// first and notify in a later step.
type Input struct {
	UserID  int64            `json:"userId"`
	Matches matching.View    `json:"matches"`
	Notify  notify.Recipient `json:"notify"`
}

type Output struct {
	Notification *notify.Result `json:"notification"`
	Delivered    bool           `json:"delivered"`
}
