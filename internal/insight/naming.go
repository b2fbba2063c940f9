package insight

import "github.com/iancoleman/strcase"

// normalizeAlias applies the lowerCamelCase convention of result field names. An alias
// naming the key itself, before or after normalization, counts as no alias.
func normalizeAlias(key, alias string) string {
	if alias == "" || alias == key {
		return ""
	}
	if n := strcase.ToLowerCamel(strcase.ToSnake(alias)); n != key {
		return n
	}
	return ""
}
