package main

import "github.com/harvest-erp/harvest/cmd/harvestctl/cli"

func main() {
	cli.Execute()
}
