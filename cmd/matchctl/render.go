package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	apperrors "opportunity-matcher/internal/common/errors"
	"opportunity-matcher/internal/matching"
)

func writeView(w io.Writer, view *matching.View) error {
	if view == nil || view.Empty {
		_, err := fmt.Fprintln(w, "No matching opportunities found.")
		return err
	}

	if _, err := fmt.Fprintf(w, "%d matches out of %d opportunities\n\n", len(view.Items), view.Total); err != nil {
		return err
	}
	for _, item := range view.Items {
		label := item.Type
		if label == "" {
			label = "opportunity"
		}
		if _, err := fmt.Fprintf(w, "%2d. %s [%s] %d%% (%s)\n    %s\n",
			item.Rank, item.Title, label, item.Percent, item.Band, item.Description); err != nil {
			return err
		}
		if len(item.Reasons) > 0 {
			if _, err := fmt.Fprintf(w, "    why: %s\n", strings.Join(item.Reasons, "; ")); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeJSON(w io.Writer, view *matching.View) error {
	if view == nil {
		view = &matching.View{Empty: true, Items: []matching.RankedItem{}}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func messageFor(snap matching.Snapshot, err error) string {
	if snap.Message != "" {
		return snap.Message
	}
	return apperrors.UserMessage(err)
}

// exitCode is 2 for input the user can fix and 1 otherwise.
func exitCode(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeValidation, apperrors.ErrCodeAuthentication:
		return 2
	default:
		return 1
	}
}
