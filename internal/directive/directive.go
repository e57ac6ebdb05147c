// Package directive parses the inline action tags the agent appends to its
// responses and formats the tags the server adds on the way out.
package directive

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	trackBillPrefix  = "[TRACK_BILL:"
	createPagePrefix = "[CREATE_PAGE_ACTION:"
)

// TrackBill is a parsed bill-tracking tag.
type TrackBill struct {
	Congress int
	BillType string
	Number   string
	Title    string
}

// BillID returns the canonical identifier used for deduplication, e.g.
// "118-hr-1234".
func (t TrackBill) BillID() string {
	return strings.ToLower(fmt.Sprintf("%d-%s-%s", t.Congress, t.BillType, t.Number))
}

// CreatePage is a parsed page-creation tag naming a Congress member.
type CreatePage struct {
	MemberName string
	BioguideID string
}

// ParseTrackBill finds the first well-formed TRACK_BILL tag in text.
// Malformed tags are skipped silently.
func ParseTrackBill(text string) (TrackBill, bool) {
	for _, fields := range scan(text, trackBillPrefix, 4) {
		congress, err := strconv.Atoi(fields[0])
		if err != nil || congress <= 0 {
			continue
		}
		return TrackBill{
			Congress: congress,
			BillType: fields[1],
			Number:   fields[2],
			Title:    fields[3],
		}, true
	}
	return TrackBill{}, false
}

// ParseCreatePage finds the first well-formed CREATE_PAGE_ACTION tag in text.
func ParseCreatePage(text string) (CreatePage, bool) {
	for _, fields := range scan(text, createPagePrefix, 2) {
		return CreatePage{
			MemberName: fields[0],
			BioguideID: fields[1],
		}, true
	}
	return CreatePage{}, false
}

// FormatIntelPacket renders an extracted fact as the inline tag clients parse
// into notebook pins.
func FormatIntelPacket(title, content string) string {
	return fmt.Sprintf("\n\n[INTEL_PACKET: %s | %s |END_PACKET]", title, content)
}

// scan yields the |-separated field lists of every candidate tag with the
// given prefix and field count. Fields are trimmed; candidates with too few
// fields or an empty field are dropped. The last field is greedy: extra '|'
// separators belong to it, so a title may contain literal pipes. No field
// can contain ']' since that character ends the tag.
func scan(text, prefix string, arity int) [][]string {
	var out [][]string
	for {
		start := strings.Index(text, prefix)
		if start < 0 {
			return out
		}
		rest := text[start+len(prefix):]
		end := strings.Index(rest, "]")
		if end < 0 {
			return out
		}
		text = rest[end+1:]

		parts := strings.Split(rest[:end], "|")
		if len(parts) < arity {
			continue
		}
		if len(parts) > arity {
			parts[arity-1] = strings.Join(parts[arity-1:], "|")
			parts = parts[:arity]
		}
		fields := make([]string, arity)
		ok := true
		for i, p := range parts {
			fields[i] = strings.TrimSpace(p)
			if fields[i] == "" {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, fields)
		}
	}
}
