package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("BACKLOT_TEST_MODE") == "" {
			_ = os.Setenv("BACKLOT_TEST_MODE", "1")
		}
	})
}
