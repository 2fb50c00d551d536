package operation

import "github.com/iancoleman/strcase"

// NamingConvention controls how static operation names are normalized.
// Dynamic pattern names are never renamed: they must keep calling through
// the runtime name-selection logic.
type NamingConvention string

const (
	NamingPascalCase NamingConvention = "pascalCase"
	NamingCamelCase  NamingConvention = "camelCase"
	NamingPreserve   NamingConvention = "preserve"
)

func (c NamingConvention) Valid() bool {
	switch c {
	case NamingPascalCase, NamingCamelCase, NamingPreserve, "":
		return true
	}
	return false
}

// Apply normalizes a static operation name according to the convention.
func (c NamingConvention) Apply(name Name) Name {
	if name.IsDynamic() || name.Static == "" {
		return name
	}
	switch c {
	case NamingPascalCase:
		name.Static = strcase.ToCamel(name.Static)
	case NamingCamelCase:
		name.Static = strcase.ToLowerCamel(name.Static)
	}
	return name
}
