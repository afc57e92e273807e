package reviewfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var priceRegex = regexp.MustCompile(`\$?(\d+(?:\.\d+)?)`)

// stringList accepts either a JSON string or an array of strings.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = stringList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*l = list
	return nil
}

// looseNumber accepts a JSON number or a string containing one ("$120", "8.5").
type looseNumber struct {
	value float64
	set   bool
}

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = looseNumber{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		m := priceRegex.FindStringSubmatch(s)
		if m == nil {
			*n = looseNumber{}
			return nil
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return fmt.Errorf("parse number %q: %w", s, err)
		}
		*n = looseNumber{value: v, set: true}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = looseNumber{value: v, set: true}
	return nil
}

func (n looseNumber) ptr() *float64 {
	if !n.set {
		return nil
	}
	v := n.value
	return &v
}

// catalogEntry is one item of a shoe catalog export.
type catalogEntry struct {
	Name        string      `json:"name"`
	Model       string      `json:"model"`
	Brand       string      `json:"brand"`
	Pros        stringList  `json:"pros"`
	Cons        stringList  `json:"cons"`
	Rating      looseNumber `json:"rating"`
	Score       looseNumber `json:"score"`
	Price       looseNumber `json:"price"`
	Features    stringList  `json:"features"`
	Description string      `json:"description"`
	Review      string      `json:"review"`
	URL         string      `json:"url"`
}

func (e *catalogEntry) fullName() string {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		name = strings.TrimSpace(e.Model)
	}
	if brand := strings.TrimSpace(e.Brand); brand != "" && name != "" {
		return brand + " " + name
	}
	return name
}

// scrapeDump is the combined output of the per-source scrapers.
type scrapeDump struct {
	YouTube   []videoEntry     `json:"youtube"`
	Reddit    []postEntry      `json:"reddit"`
	RunRepeat []labReviewEntry `json:"runrepeat"`
}

type videoEntry struct {
	Title      string `json:"title"`
	Transcript string `json:"transcript"`
	VideoID    string `json:"video_id"`
}

type postEntry struct {
	Title      string   `json:"title"`
	Text       string   `json:"text"`
	ShoeModels []string `json:"shoe_models"`
	Metadata   struct {
		URL string `json:"url"`
	} `json:"metadata"`
}

type labReviewEntry struct {
	ShoeModel string                     `json:"shoe_model"`
	Pros      []string                   `json:"pros"`
	Cons      []string                   `json:"cons"`
	Specs     map[string]json.RawMessage `json:"specs"`
}
