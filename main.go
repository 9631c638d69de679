/*
Copyright © 2026 SupremeDrip
*/
package main

import "github.com/SupremeDrip/cohort-01-faraz-fin-lit/cmd"

func main() {
	cmd.Execute()
}
