/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/mindsight/journal/cmd"

func main() {
	cmd.Execute()
}
