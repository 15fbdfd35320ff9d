package messy

func  Add(a, b int) int { // want `not gofmt-formatted from line 3`
	return a + b
}
