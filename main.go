/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package main

import "github.com/elevateforhumanity/enrollment-gin/cmd"

func main() {
	cmd.Execute()
}
