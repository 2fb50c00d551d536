package main

import "github.com/jensneuse/graphql-migrate/cmd"

func main() {
	cmd.Execute()
}
