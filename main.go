package main

import "github.com/ValentinKolb/qKV/cmd"

func main() {
	cmd.Execute()
}
