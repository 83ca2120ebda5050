package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
)

// maxBodyFragment caps how much of a response body is quoted in Error().
const maxBodyFragment = 200

// RequestError reports a failed API call: a non-2xx status or a body the
// engine flagged as invalid. Body holds the raw response for diagnostics.
type RequestError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	// Messages holds the engine's validation errors from a
	// {"errors": [...]} body, with share-group errors reformatted.
	Messages []string
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("transport: %s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if len(e.Messages) > 0 {
		return msg + ": engine returned the following error(s):\n > " + strings.Join(e.Messages, "\n > ")
	}
	if frag := bodyFragment(e.Body); frag != "" {
		msg += ": " + frag
	}
	return msg
}

// IsStatus reports whether err is a *RequestError with the given status code.
func IsStatus(err error, code int) bool {
	var re *RequestError
	return errors.As(err, &re) && re.StatusCode == code
}

func newRequestError(method, url string, status int, body []byte) *RequestError {
	return &RequestError{
		Method:     method,
		URL:        url,
		StatusCode: status,
		Body:       string(body),
		Messages:   engineMessages(body),
	}
}

// engineMessages extracts {"errors": [...]} messages from a response body.
// Bodies of any other shape yield nil.
func engineMessages(body []byte) []string {
	var payload struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Errors) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(payload.Errors, &list); err != nil {
		// Some endpoints key errors by field.
		var byField map[string][]string
		if err := json.Unmarshal(payload.Errors, &byField); err != nil {
			return nil
		}
		fields := make([]string, 0, len(byField))
		for field := range byField {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			for _, m := range byField[field] {
				list = append(list, field+": "+m)
			}
		}
	}

	out := make([]string, len(list))
	for i, m := range list {
		if strings.Contains(m, "group does not balance") {
			m = formatShareGroupError(m)
		}
		out[i] = m
	}
	return out
}

var (
	shareGroupName  = regexp.MustCompile(`"[a-z_]*"`)
	shareGroupTotal = regexp.MustCompile(`\d+\.\d+`)
	shareGroupItem  = regexp.MustCompile(`[a-z_]+=[0-9.]+`)
)

// formatShareGroupError rewrites an engine share-group balance error, e.g.
//
//	"heat" group does not balance: group sums to 99.5 using a=50.0 b=49.5
//
// into a group headline followed by one parameter per line.
func formatShareGroupError(msg string) string {
	name := shareGroupName.FindString(msg)
	total := shareGroupTotal.FindString(msg)
	if name == "" || total == "" {
		return msg
	}
	head := fmt.Sprintf("share group '%s' sums to %s", strings.Trim(name, `"`), total)

	items := shareGroupItem.FindAllString(msg, -1)
	if len(items) == 0 {
		return head
	}
	lines := make([]string, len(items))
	for i, item := range items {
		k, v, _ := strings.Cut(item, "=")
		lines[i] = fmt.Sprintf("    '%s': %s", k, v)
	}
	return head + "\n" + strings.Join(lines, ",\n")
}

func bodyFragment(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > maxBodyFragment {
		return body[:maxBodyFragment] + "..."
	}
	return body
}
