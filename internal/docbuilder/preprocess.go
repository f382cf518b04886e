package docbuilder

import "fmt"

// Preprocessor is one stage of the configurable transformation chain
// (spec.md §9): an ordered sequence of (projectKey, issue) -> issue
// stages applied before extraction. Stages cannot register new
// stages at runtime, so cycles are not possible by construction.
type Preprocessor interface {
	Name() string
	Apply(projectKey string, issue map[string]interface{}) (map[string]interface{}, error)
}

// builtinPreprocessors is the registry of stage names recognized in
// the `preprocessors` configuration list.
var builtinPreprocessors = map[string]func() Preprocessor{
	"strip_empty_description": func() Preprocessor { return stripEmptyDescription{} },
}

func buildPreprocessors(names []string) ([]Preprocessor, error) {
	stages := make([]Preprocessor, 0, len(names))
	for _, name := range names {
		factory, ok := builtinPreprocessors[name]
		if !ok {
			return nil, fmt.Errorf("unknown preprocessor %q", name)
		}
		stages = append(stages, factory())
	}
	return stages, nil
}

// stripEmptyDescription removes a fields.description key whose value
// is an empty string, so the document builder's "missing key -> field
// omitted" rule (spec.md §4.3) applies uniformly to both absent and
// blank descriptions instead of indexing an empty field.
type stripEmptyDescription struct{}

func (stripEmptyDescription) Name() string { return "strip_empty_description" }

func (stripEmptyDescription) Apply(_ string, issue map[string]interface{}) (map[string]interface{}, error) {
	fields, ok := issue["fields"].(map[string]interface{})
	if !ok {
		return issue, nil
	}
	if desc, ok := fields["description"].(string); ok && desc == "" {
		delete(fields, "description")
	}
	return issue, nil
}
