/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package main

import "rwadriver/cmd"

func main() {
	cmd.Execute()
}
