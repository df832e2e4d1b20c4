package main

import (
	"order-sync-alerts/internal/cli"
)

func main() {
	cli.Execute()
}
