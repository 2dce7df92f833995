package docs

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Folder layout on the remote store. Servant documents are bucketed by the
// first letter of the servant's name so no single folder grows unbounded;
// financial documents are bucketed by type, year and period.
const (
	servantBucketPrefix = "Servidores "
	financialRoot       = "Documentações Financeiras"
)

// ServantPath builds the logical path for a servant's document:
// [municipality, "Servidores <letter>", servantName].
func ServantPath(municipality, servantName string) []string {
	return []string{
		municipality,
		servantBucketPrefix + bucketLetter(servantName),
		servantName,
	}
}

// FinancialPath builds the logical path for a financial document:
// [municipality, "Documentações Financeiras", typeName, year, period].
func FinancialPath(municipality, typeName string, year int, period string) []string {
	return []string{
		municipality,
		financialRoot,
		typeName,
		fmt.Sprintf("%d", year),
		period,
	}
}

// bucketLetter returns the uppercase, accent-stripped first letter of
// name, or "#" when the name does not start with a letter.
func bucketLetter(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "#"
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil || stripped == "" {
		stripped = name
	}

	r := []rune(strings.ToUpper(stripped))[0]
	if !unicode.IsLetter(r) {
		return "#"
	}
	return string(r)
}
