// Command circlebot runs the circular-sticker Telegram bot.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
