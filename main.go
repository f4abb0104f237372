package main

import "github.com/tasklane/apiserver/cmd"

func main() {
	cmd.Execute()
}
