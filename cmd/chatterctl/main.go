package main

import "github.com/newprojectblitz/chat-chrome-chatterbox/internal/cli"

func main() {
	cli.Execute()
}
