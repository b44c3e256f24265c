// Package guard forces test mode for packages whose tests must never
// touch live infrastructure. Blank-import it from a _test.go file.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("FORMULAPM_TEST_MODE") == "" {
			_ = os.Setenv("FORMULAPM_TEST_MODE", "1")
		}
	})
}
