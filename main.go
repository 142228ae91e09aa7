package main

import "jitlower/cmd"

func main() {
	cmd.Execute()
}
