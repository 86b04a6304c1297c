// Package envx expands environment references in configuration files.
package envx

import (
	"os"
	"regexp"
)

var braced = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Expand replaces ${NAME} with the value of the environment variable NAME.
// Bare $NAME is left alone so argon2id PHC strings ("$argon2id$v=19$...")
// survive expansion untouched. Unset variables expand to "".
func Expand(s string) string {
	return braced.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(braced.FindStringSubmatch(m)[1])
	})
}
