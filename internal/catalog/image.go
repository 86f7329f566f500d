package catalog

import "strings"

const (
	PosterSize       = "w500"
	PlaceholderImage = "https://placehold.co/600x400/1a1a1a/FFFFFF.png"
)

// ImageURL turns a provider poster path into an absolute URL. A missing path
// yields the placeholder image.
func (c *Client) ImageURL(path string) string {
	return ImageURL(c.imageBaseURL, path)
}

func ImageURL(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return PlaceholderImage
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if base == "" {
		base = DefaultImageBaseURL
	}
	return strings.TrimRight(base, "/") + "/" + PosterSize + path
}
