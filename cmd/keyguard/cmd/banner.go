package cmd

import (
	"fmt"
)

const banner = `
  _  __          _____                     _
 | |/ /         / ____|                   | |
 | ' / ___ _   | |  __ _   _  __ _ _ __ __| |
 |  < / _ \ | | | | |_ | | | |/ _` + "`" + ` | '__/ _` + "`" + ` |
 | . \  __/ |_| | |__| | |_| | (_| | | | (_| |
 |_|\_\___|\__, |\_____|\__,_|\__,_|_|  \__,_|
            __/ |
           |___/
`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Local API-Key Vault - Version %s\x1b[0m\n\n", Version)
}
