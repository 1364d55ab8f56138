package plots

import "strings"

var anchorReplacer = strings.NewReplacer(" ", "-", "&", "_", "(", "", ")", "")

// Anchor derives the navigation fragment of a chart title.
func Anchor(title string) string {
	return "Nav-" + anchorReplacer.Replace(title)
}

// Manifest returns the navigation entries of the rendered charts, in order.
func Manifest(charts []*Descriptor) []ManifestEntry {
	out := make([]ManifestEntry, 0, len(charts))
	for _, d := range charts {
		out = append(out, ManifestEntry{
			ModelID:  d.ID,
			Fragment: Anchor(d.Title),
			Title:    d.Title,
		})
	}
	return out
}
