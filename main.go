package main

import "github.com/denysvitali/nextcloud-files-bot/cmd"

func main() {
	cmd.Execute()
}
