package faceindex

import "sort"

// ImageGroups maps an image path to its records, in index order.
type ImageGroups map[string][]FaceRecord

// GroupByImage buckets the records of idx by source image.
func GroupByImage(idx *Index) ImageGroups {
	groups := make(ImageGroups)
	if idx == nil {
		return groups
	}
	for _, rec := range idx.Records {
		groups[rec.ImagePath] = append(groups[rec.ImagePath], rec)
	}
	return groups
}

// Paths returns the group keys in lexicographic order.
func (g ImageGroups) Paths() []string {
	paths := make([]string, 0, len(g))
	for p := range g {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
