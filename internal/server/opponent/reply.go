package opponent

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var firstObject = regexp.MustCompile(`(?s)\{.*?\}`)

var errNoJSON = errors.New("no JSON object in model reply")

// Reply is the structured part of a model answer
type Reply struct {
	Row   *int   `json:"row"`
	Col   *int   `json:"col"`
	Speak string `json:"speak"`
}

// ParseReply decodes the whole text as JSON, or failing that the first
// brace-delimited block in it
func ParseReply(text string) (Reply, error) {
	var r Reply
	text = strings.TrimSpace(text)
	if text == "" {
		return r, errNoJSON
	}
	if err := json.Unmarshal([]byte(text), &r); err == nil {
		return r, nil
	}

	m := firstObject.FindString(text)
	if m == "" {
		return r, errNoJSON
	}
	r = Reply{}
	if err := json.Unmarshal([]byte(m), &r); err != nil {
		return Reply{}, errNoJSON
	}
	return r, nil
}
