package sim

import (
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// NameMustBeValid panics if the name does not follow the naming convention.
//
// A name is a dot-separated hierarchy such as "Core[0].Spikes.Queue". Every
// element starts with a capital letter, must not be empty, must not contain
// '_', '-', or quotes, and may carry square-bracket indices.
func NameMustBeValid(name string) {
	if err := validateName(name); err != "" {
		log.Panicf("name %q is not valid: %s", name, err)
	}
}

func validateName(name string) string {
	for _, elem := range strings.Split(name, ".") {
		base, ok := stripIndices(elem)
		if !ok {
			return "brackets must match and hold integers"
		}

		if base == "" {
			return "name element must not be empty"
		}

		if strings.ContainsAny(base, "_\"'-") {
			return "name element must not contain _ - or quotes"
		}

		if base[0] < 'A' || base[0] > 'Z' {
			return "name element must start with a capital letter"
		}
	}

	return ""
}

func stripIndices(elem string) (string, bool) {
	open := strings.IndexByte(elem, '[')
	if open < 0 {
		return elem, !strings.ContainsRune(elem, ']')
	}

	base, rest := elem[:open], elem[open:]
	for rest != "" {
		if rest[0] != '[' {
			return "", false
		}

		closing := strings.IndexByte(rest, ']')
		if closing < 0 {
			return "", false
		}

		if _, err := strconv.Atoi(rest[1:closing]); err != nil {
			return "", false
		}

		rest = rest[closing+1:]
	}

	return base, true
}

// BuildName builds a name from a parent name and an element name.
func BuildName(parentName, elementName string) string {
	if parentName == "" {
		return elementName
	}

	return parentName + "." + elementName
}

// BuildNameWithIndex builds a name from a parent name, an element name and an
// index.
func BuildNameWithIndex(parentName, elementName string, index int) string {
	return BuildName(parentName, elementName+"["+strconv.Itoa(index)+"]")
}
