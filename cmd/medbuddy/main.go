// Command medbuddy keeps household health records and syncs them.
package main

import "github.com/bolasblack/medbuddy/internal/cli"

func main() {
	cli.Execute()
}
