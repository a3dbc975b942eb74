package criteria

import (
	"github.com/viant/guardrail/service/dao"
)

// Match reports whether a record with the supplied named field values
// satisfies every List parameter.  Parameters whose name is not present in
// fields are ignored so that stores can support a subset of filters without
// surprising callers.
func Match(fields map[string]string, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		actual, ok := fields[parameter.Name]
		if !ok {
			continue
		}
		if !matchValue(actual, parameter.Value) {
			return false
		}
	}
	return true
}

// FilterByState is a convenience for the common single-field case.
func FilterByState(state string, parameters []*dao.Parameter) bool {
	return Match(map[string]string{"State": state}, parameters)
}

func matchValue(actual string, expected interface{}) bool {
	switch value := expected.(type) {
	case string:
		return actual == value
	case []string:
		for _, candidate := range value {
			if actual == candidate {
				return true
			}
		}
		return false
	}
	return true
}
