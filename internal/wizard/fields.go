package wizard

import (
	"encoding/json"
	"strings"
)

// JoinName rejoins last and first name with a single half-width space.
func JoinName(last, first string) string {
	last, first = strings.TrimSpace(last), strings.TrimSpace(first)
	switch {
	case last == "":
		return first
	case first == "":
		return last
	}
	return last + " " + first
}

// SplitName splits a stored full name on its first half-width or full-width
// space. A name without a space is returned as the last name.
func SplitName(full string) (last, first string) {
	full = strings.TrimSpace(full)
	idx := strings.IndexAny(full, " 　")
	if idx < 0 {
		return full, ""
	}
	sep := 1
	if strings.HasPrefix(full[idx:], "　") {
		sep = len("　")
	}
	return strings.TrimSpace(full[:idx]), strings.TrimSpace(full[idx+sep:])
}

// Qualification checkbox values.
const (
	QualTakken          = "takken"
	QualArchitect1st    = "architect_1st"
	QualArchitect2nd    = "architect_2nd"
	QualArchitectWooden = "architect_wooden"
)

var (
	qualificationOrder = []string{QualTakken, QualArchitect1st, QualArchitect2nd, QualArchitectWooden}
	architectClasses   = []string{QualArchitect1st, QualArchitect2nd, QualArchitectWooden}
)

func isArchitectClass(q string) bool {
	for _, a := range architectClasses {
		if a == q {
			return true
		}
	}
	return false
}

// QualificationSet is the checked state of one form's qualification boxes.
// The three architect classes are mutually exclusive; takken is independent.
type QualificationSet struct {
	checked map[string]bool
	extra   []string
}

// ParseQualifications loads a stored comma-delimited value.
func ParseQualifications(value string) *QualificationSet {
	q := &QualificationSet{checked: map[string]bool{}}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			q.Check(part)
		}
	}
	return q
}

// Check ticks q. Ticking an architect class unticks the other two.
func (s *QualificationSet) Check(q string) {
	if s.checked == nil {
		s.checked = map[string]bool{}
	}
	if isArchitectClass(q) {
		for _, a := range architectClasses {
			delete(s.checked, a)
		}
	}
	if !s.checked[q] && !isKnownQualification(q) {
		s.extra = append(s.extra, q)
	}
	s.checked[q] = true
}

// Uncheck clears q.
func (s *QualificationSet) Uncheck(q string) {
	delete(s.checked, q)
	for i, e := range s.extra {
		if e == q {
			s.extra = append(s.extra[:i], s.extra[i+1:]...)
			break
		}
	}
}

// Has reports whether q is ticked.
func (s *QualificationSet) Has(q string) bool {
	return s != nil && s.checked[q]
}

// String is the comma-delimited stored form in canonical order.
func (s *QualificationSet) String() string {
	if s == nil {
		return ""
	}
	var out []string
	for _, q := range qualificationOrder {
		if s.checked[q] {
			out = append(out, q)
		}
	}
	out = append(out, s.extra...)
	return strings.Join(out, ",")
}

func isKnownQualification(q string) bool {
	for _, k := range qualificationOrder {
		if k == q {
			return true
		}
	}
	return false
}

// FreeImage is one image/link pair of the free input block.
type FreeImage struct {
	Image string `json:"image"`
	Link  string `json:"link"`
}

type freeInputDoc struct {
	Texts  []string    `json:"texts"`
	Images []FreeImage `json:"images"`
}

// FreeInputBuilder collects the free input rows positionally.
type FreeInputBuilder struct {
	texts    []string
	images   []FreeImage
	previous []FreeImage
}

// ParseFreeInput loads a stored free_input document so image rows without a
// new upload keep their previous path.
func ParseFreeInput(raw json.RawMessage) *FreeInputBuilder {
	b := &FreeInputBuilder{}
	if len(raw) == 0 {
		return b
	}
	var doc freeInputDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		var encoded string
		if json.Unmarshal(raw, &encoded) != nil || json.Unmarshal([]byte(encoded), &doc) != nil {
			return b
		}
	}
	b.previous = doc.Images
	return b
}

// AddText appends one text block.
func (b *FreeInputBuilder) AddText(text string) {
	b.texts = append(b.texts, text)
}

// AddImage appends the image row at the next position. An empty uploaded
// path keeps the path stored at that position before.
func (b *FreeInputBuilder) AddImage(uploaded, link string) {
	pos := len(b.images)
	path := uploaded
	if path == "" && pos < len(b.previous) {
		path = b.previous[pos].Image
	}
	b.images = append(b.images, FreeImage{Image: path, Link: link})
}

// JSON serializes to {"texts":[...],"images":[...]}.
func (b *FreeInputBuilder) JSON() (json.RawMessage, error) {
	doc := freeInputDoc{Texts: b.texts, Images: b.images}
	if doc.Texts == nil {
		doc.Texts = []string{}
	}
	if doc.Images == nil {
		doc.Images = []FreeImage{}
	}
	return json.Marshal(doc)
}
