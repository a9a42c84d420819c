package domain

import "strconv"

// PostKind determines which optional PostRecord fields carry meaning.
type PostKind string

const (
	PostKindText  PostKind = "Text"
	PostKindImage PostKind = "Image"
	PostKindVideo PostKind = "Video"
)

// imageSlots is the size of the legacy images array: four image URLs
// plus a trailing slot holding the image count as a string. Stored cache
// entries depend on this exact shape, so it is preserved as-is.
const imageSlots = 5

// PostRecord is the normalized representation of a post, cached keyed by
// SourceURL. The JSON field names are the legacy wire format and must stay
// compatible with entries already sitting in caches.
//
// The cache key is the raw source URL: two URLs differing only in a
// trailing query string are distinct keys. Long-standing quirk, kept.
type PostRecord struct {
	SourceURL    string      `json:"tweet" bson:"tweet"`
	MediaURL     string      `json:"url" bson:"url"`
	Description  string      `json:"description" bson:"description"`
	Thumbnail    string      `json:"thumbnail" bson:"thumbnail"`
	AuthorName   string      `json:"uploader" bson:"uploader"`
	AuthorHandle string      `json:"screen_name" bson:"screen_name"`
	AuthorAvatar string      `json:"pfp" bson:"pfp"`
	Kind         PostKind    `json:"type" bson:"type"`
	Images       []string    `json:"images" bson:"images"`
	HitCount     int         `json:"hits" bson:"hits"`
	LikeCount    int         `json:"likes" bson:"likes"`
	RetweetCount int         `json:"rts" bson:"rts"`
	CreatedAt    string      `json:"time" bson:"time"`
	Quoted       *QuotedPost `json:"qrt,omitempty" bson:"qrt,omitempty"`
	NSFW         bool        `json:"nsfw" bson:"nsfw"`
}

// QuotedPost holds the inline-referenced post, when one exists.
type QuotedPost struct {
	Description  string `json:"desc" bson:"desc"`
	AuthorName   string `json:"handle" bson:"handle"`
	AuthorHandle string `json:"screen_name" bson:"screen_name"`
}

// NewImageSlots returns a fresh legacy-shaped images array.
func NewImageSlots() []string {
	return make([]string, imageSlots)
}

// SetImages fills the legacy array: up to four URLs in order, count in the
// final slot.
func (p *PostRecord) SetImages(urls []string) {
	slots := NewImageSlots()
	n := 0
	for _, u := range urls {
		if n >= imageSlots-1 {
			break
		}
		slots[n] = u
		n++
	}
	slots[imageSlots-1] = strconv.Itoa(n)
	p.Images = slots
}

// ImageCount decodes the trailing count slot. Zero for text/video posts
// or malformed arrays.
func (p *PostRecord) ImageCount() int {
	if len(p.Images) != imageSlots {
		return 0
	}
	n, err := strconv.Atoi(p.Images[imageSlots-1])
	if err != nil || n < 0 || n > imageSlots-1 {
		return 0
	}
	return n
}

// ImageAt returns the image URL at index, or "" when out of range.
func (p *PostRecord) ImageAt(index int) string {
	if index < 0 || index >= p.ImageCount() {
		return ""
	}
	return p.Images[index]
}

// SortField reads the named engagement counter for cache listings.
// Unknown fields read as zero.
func (p *PostRecord) SortField(field string) int {
	switch field {
	case "hits":
		return p.HitCount
	case "likes":
		return p.LikeCount
	case "rts":
		return p.RetweetCount
	}
	return 0
}
