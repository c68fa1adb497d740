package main

import "github.com/frahmantamala/santega-authz/cmd"

func main() {
	cmd.Execute()
}
