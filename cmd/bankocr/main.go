package main

import "github.com/MeKo-Tech/bankocr/cmd/bankocr/cmd"

func main() {
	cmd.Execute()
}
