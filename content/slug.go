package content

import "github.com/gosimple/slug"

// Slugify derives a URL-safe slug from a title or name.
func Slugify(s string) string {
	return slug.Make(s)
}
