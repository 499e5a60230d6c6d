package domain

// BlobRef locates a stored object inside a user's namespace.
type BlobRef struct {
	Prefix string
	Name   string
}

// Key returns the full object key.
func (r BlobRef) Key() string {
	return r.Prefix + "/" + r.Name
}

// ImageEntry is one item of a user's feed.
type ImageEntry struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Caption string `json:"caption"`
}
