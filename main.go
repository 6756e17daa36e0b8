package main

import (
	"github.com/samuelfneumann/goa2c/examples"
)

func main() {
	examples.NStepA2C()
}
