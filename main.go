package main

import "github.com/shouni/go-charity-scraper/cmd"

func main() {
	cmd.Execute()
}
