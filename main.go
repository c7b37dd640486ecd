package main

import "github.com/ykarpov/photodex/cmd"

func main() {
	cmd.Execute()
}
