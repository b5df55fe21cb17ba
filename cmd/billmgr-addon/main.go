// Command billmgr-addon hosts a plugin with no endpoints of its own: every
// panel event echoes its payload. It is useful for checking a panel
// integration before any handlers are written.
package main

import (
	"os"

	"github.com/pulivilizator/billmgr-addon/addon"
)

func main() {
	os.Exit(addon.Run("billmgr-addon", nil))
}
