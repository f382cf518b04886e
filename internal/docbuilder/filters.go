package docbuilder

import "github.com/riverdex/jira-river/internal/config"

// applyFilter implements the "Filter semantics" of spec.md §4.3: a
// filter renames the keys of a single nested object, or of each
// element of a sequence of objects. Scalars and sequences of
// non-objects produce a DataShape warning (spec.md §7) and pass
// through unfiltered; ordering of filtered keys is irrelevant,
// ordering of sequence elements is preserved.
func (b *Builder) applyFilter(filterName string, value interface{}) interface{} {
	rename, ok := b.cfg.ValueFilters[filterName]
	if !ok {
		// Caught at construction by config.Validate; defensive no-op here.
		return value
	}

	if obj, ok := value.(map[string]interface{}); ok {
		return renameKeys(obj, rename)
	}

	if arr, ok := value.([]interface{}); ok {
		out := make([]interface{}, len(arr))
		allObjects := true
		for i, el := range arr {
			obj, ok := el.(map[string]interface{})
			if !ok {
				allObjects = false
				break
			}
			out[i] = renameKeys(obj, rename)
		}
		if allObjects {
			return out
		}
		b.warnf("value_filter %q applied to a sequence of non-objects; passing through unfiltered", filterName)
		return value
	}

	b.warnf("value_filter %q applied to a scalar; passing through unfiltered", filterName)
	return value
}

func renameKeys(obj map[string]interface{}, rename config.FilterSpec) map[string]interface{} {
	out := make(map[string]interface{}, len(rename))
	for upstreamKey, outputKey := range rename {
		if v, ok := obj[upstreamKey]; ok {
			out[outputKey] = v
		}
	}
	return out
}
