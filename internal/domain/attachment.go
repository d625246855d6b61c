package domain

import "encoding/json"

// Attachment is media or a link card attached to a post. The variants are
// Images and Link.
type Attachment interface {
	attachment()
}

// Size is a pixel size.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Focus is a focal point in the range [-1,1] on both axes, origin at center.
type Focus struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ImageSpecifier locates one rendition of an image.
type ImageSpecifier struct {
	URL   string `json:"url"`
	Size  *Size  `json:"size,omitempty"`
	Focus *Focus `json:"focus,omitempty"`
}

// Image is a single image in an Images attachment.
type Image struct {
	Preview     *ImageSpecifier `json:"preview,omitempty"`
	Full        ImageSpecifier  `json:"full"`
	Description string          `json:"description,omitempty"`
}

// Images is an ordered gallery.
type Images struct {
	Images []Image `json:"images"`
}

// Link is a link card or a quoted post.
type Link struct {
	Preview     *ImageSpecifier `json:"preview,omitempty"`
	Description string          `json:"description,omitempty"`
	Title       string          `json:"title,omitempty"`
	URL         string          `json:"url"`
}

func (Images) attachment() {}
func (Link) attachment()   {}

// MarshalJSON tags the variant with "kind": "images".
func (a Images) MarshalJSON() ([]byte, error) {
	type plain Images
	return json.Marshal(struct {
		Kind string `json:"kind"`
		plain
	}{Kind: "images", plain: plain(a)})
}

// MarshalJSON tags the variant with "kind": "link".
func (a Link) MarshalJSON() ([]byte, error) {
	type plain Link
	return json.Marshal(struct {
		Kind string `json:"kind"`
		plain
	}{Kind: "link", plain: plain(a)})
}
