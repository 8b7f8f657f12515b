package main

import "github.com/quoteshare/apiserver/cmd"

func main() {
	cmd.Execute()
}
