package catalog

import (
	"sort"
	"strings"
)

// Filter narrows a browse listing. Empty fields match everything.
type Filter struct {
	Query      string
	ObjectType string
	Collection string
	Keyword    string
}

// Active reports whether any criterion is set.
func (f Filter) Active() bool {
	return f.Query != "" || f.ObjectType != "" || f.Collection != "" || f.Keyword != ""
}

// Search returns the objects matching f, preserving order.
func Search(objects []Object, f Filter) []Object {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	var out []Object
	for _, o := range objects {
		if query != "" && !strings.Contains(searchableText(o), query) {
			continue
		}
		if f.ObjectType != "" && o.ObjectType != f.ObjectType {
			continue
		}
		if f.Collection != "" && o.Collection != f.Collection {
			continue
		}
		if f.Keyword != "" && !containsString(o.Keywords, f.Keyword) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func searchableText(o Object) string {
	parts := []string{o.Title, o.AboutText, o.ObjectType, o.Maker, o.Designer}
	parts = append(parts, o.Keywords...)
	return strings.ToLower(strings.Join(parts, " "))
}

// Facets lists the distinct values available for the browse filters.
type Facets struct {
	ObjectTypes []string
	Collections []string
	Keywords    []string
}

// CollectFacets gathers sorted, de-duplicated filter values from objects.
func CollectFacets(objects []Object) Facets {
	types := map[string]struct{}{}
	collections := map[string]struct{}{}
	keywords := map[string]struct{}{}
	for _, o := range objects {
		if o.ObjectType != "" {
			types[o.ObjectType] = struct{}{}
		}
		if o.Collection != "" {
			collections[o.Collection] = struct{}{}
		}
		for _, k := range o.Keywords {
			if k = strings.TrimSpace(k); k != "" {
				keywords[k] = struct{}{}
			}
		}
	}
	return Facets{
		ObjectTypes: sortedKeys(types),
		Collections: sortedKeys(collections),
		Keywords:    sortedKeys(keywords),
	}
}

// Related scores every other object against current and returns the top n:
// same collection +3, same type +2, each shared keyword +1, same maker +2.
func Related(current Object, objects []Object, n int) []Object {
	type scored struct {
		obj   Object
		score int
	}
	var candidates []scored
	for _, o := range objects {
		if o.ID == current.ID {
			continue
		}
		score := 0
		if o.Collection != "" && o.Collection == current.Collection {
			score += 3
		}
		if o.ObjectType != "" && o.ObjectType == current.ObjectType {
			score += 2
		}
		for _, k := range o.Keywords {
			if containsString(current.Keywords, k) {
				score++
			}
		}
		if o.Maker != "" && o.Maker == current.Maker {
			score += 2
		}
		if score > 0 {
			candidates = append(candidates, scored{obj: o, score: score})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]Object, len(candidates))
	for i, c := range candidates {
		out[i] = c.obj
	}
	return out
}

func containsString(vals []string, want string) bool {
	for _, v := range vals {
		if v == want {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
